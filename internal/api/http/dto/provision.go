package dto

const StateProcessing = "processing"

type CreateProvisionResponse struct {
	State    string `json:"state"`
	Handle   string `json:"handle"`
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

type ProcessingResponse struct {
	State string `json:"state"`
}

// TaskResultResponse mirrors the task's completion payload.
type TaskResultResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Identity   string `json:"identity"`
	BundlePath string `json:"bundle_path,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
