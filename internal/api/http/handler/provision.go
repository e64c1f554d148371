package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telspan/vpn-provision/internal/api/http/dto"
	"github.com/telspan/vpn-provision/internal/bundle"
	"github.com/telspan/vpn-provision/internal/identity"
	"github.com/telspan/vpn-provision/internal/metrics"
	"github.com/telspan/vpn-provision/internal/provision"
)

type ProvisionHandler struct {
	svc *provision.Service
}

func NewProvisionHandler(svc *provision.Service) *ProvisionHandler {
	return &ProvisionHandler{svc: svc}
}

// Create accepts a provisioning request and answers 202 with the task handle
// and the derived token the caller needs for the later fetch.
func (h *ProvisionHandler) Create(ctx *gin.Context) {
	id := ctx.Param("identity")

	res, err := h.svc.Create(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidFormat):
			metrics.ProvisionRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid provision identity format"})
		case errors.Is(err, provision.ErrAlreadyProvisioned),
			errors.Is(err, provision.ErrProvisioningInFlight):
			metrics.ProvisionRequests.WithLabelValues(metrics.OutcomeConflict).Inc()
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			metrics.ProvisionRequests.WithLabelValues(metrics.OutcomeError).Inc()
			slog.Error("Failed to create provisioning task", "identity", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
		}
		return
	}

	metrics.ProvisionRequests.WithLabelValues(metrics.OutcomeAccepted).Inc()
	ctx.JSON(http.StatusAccepted, dto.CreateProvisionResponse{
		State:    dto.StateProcessing,
		Handle:   res.Handle.String(),
		Identity: res.Identity,
		Token:    res.Token,
	})
}

// Task reports task status: 202 while processing, 200 on success, 400 for a
// payload-level failure, 500 when the worker itself crashed.
func (h *ProvisionHandler) Task(ctx *gin.Context) {
	handle := ctx.Param("handle")

	poll, err := h.svc.Poll(ctx.Request.Context(), handle)
	if err != nil {
		slog.Error("Failed to poll task", "handle", handle, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
		return
	}

	switch poll.Status {
	case provision.StatusSucceeded:
		ctx.JSON(http.StatusOK, resultResponse(poll))
	case provision.StatusFailed:
		ctx.JSON(http.StatusBadRequest, resultResponse(poll))
	case provision.StatusWorkerFailure:
		ctx.JSON(http.StatusInternalServerError, dto.TaskResultResponse{
			Status:  "error",
			Message: "provisioning worker failed",
		})
	default:
		ctx.JSON(http.StatusAccepted, dto.ProcessingResponse{State: dto.StateProcessing})
	}
}

// Fetch returns the assembled client configuration as a file attachment.
func (h *ProvisionHandler) Fetch(ctx *gin.Context) {
	id := ctx.Param("identity")
	token := ctx.Param("token")

	data, err := h.svc.Fetch(ctx.Request.Context(), id, token)
	if err != nil {
		switch {
		case errors.Is(err, provision.ErrUnauthorized):
			ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
		case errors.Is(err, bundle.ErrNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "configuration not found"})
		default:
			slog.Error("Failed to fetch bundle", "identity", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
		}
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".ovpn"))
	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

func resultResponse(poll *provision.PollResult) dto.TaskResultResponse {
	return dto.TaskResultResponse{
		Status:     poll.Result.Status,
		Message:    poll.Result.Message,
		Identity:   poll.Result.Identity,
		BundlePath: poll.Result.BundlePath,
	}
}
