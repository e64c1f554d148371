package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telspan/vpn-provision/internal/api/http/dto"
	"github.com/telspan/vpn-provision/internal/bundle"
	"github.com/telspan/vpn-provision/internal/ca"
	"github.com/telspan/vpn-provision/internal/provision"
	"github.com/telspan/vpn-provision/internal/secret"
	"github.com/telspan/vpn-provision/internal/tasks"
	"github.com/telspan/vpn-provision/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type genFunc func(ctx context.Context, identity string) error

func (f genFunc) Generate(ctx context.Context, identity string) error { return f(ctx, identity) }

type provisionFixture struct {
	router  *gin.Engine
	bundles *bundle.Store
	store   *tasks.MemoryStore
	svc     *provision.Service
}

func newProvisionFixture(t *testing.T) *provisionFixture {
	t.Helper()

	deriver, err := secret.NewDeriver("test-server-secret")
	require.NoError(t, err)
	bundles := bundle.NewStore(t.TempDir(), "vpn.example.com", 1194)
	require.NoError(t, os.WriteFile(filepath.Join(bundles.Dir, "ca.crt"), []byte("CA"), 0o600))
	store := tasks.NewMemoryStore()
	svc := provision.NewService(deriver, bundles, store)

	h := NewProvisionHandler(svc)
	r := gin.New()
	r.POST("/provision/create/:identity", h.Create)
	r.GET("/provision/task/:handle", h.Task)
	r.GET("/provision/fetch/:identity/:token", h.Fetch)

	return &provisionFixture{router: r, bundles: bundles, store: store, svc: svc}
}

// runWorker drains the queue with a runner backed by the given generator.
func (f *provisionFixture) runWorker(t *testing.T, gen ca.Generator) {
	t.Helper()
	r := worker.NewRunner(f.store, f.bundles, gen, time.Second)
	require.NoError(t, r.Process(context.Background()))
}

func (f *provisionFixture) writeMaterial(t *testing.T) genFunc {
	t.Helper()
	return func(ctx context.Context, identity string) error {
		if err := os.WriteFile(filepath.Join(f.bundles.Dir, identity+".crt"), []byte("CERT"), 0o600); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(f.bundles.Dir, identity+".key"), []byte("KEY"), 0o600)
	}
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProvisionLifecycle(t *testing.T) {
	f := newProvisionFixture(t)

	w := doRequest(f.router, "POST", "/provision/create/client7")
	require.Equal(t, http.StatusAccepted, w.Code)

	var created dto.CreateProvisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "processing", created.State)
	assert.Equal(t, "client7", created.Identity)
	assert.NotEmpty(t, created.Handle)
	assert.NotEmpty(t, created.Token)

	// Still queued.
	w = doRequest(f.router, "GET", "/provision/task/"+created.Handle)
	assert.Equal(t, http.StatusAccepted, w.Code)

	f.runWorker(t, f.writeMaterial(t))

	w = doRequest(f.router, "GET", "/provision/task/"+created.Handle)
	require.Equal(t, http.StatusOK, w.Code)
	var result dto.TaskResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "client7", result.Identity)
	assert.Equal(t, f.bundles.BundlePath("client7"), result.BundlePath)

	w = doRequest(f.router, "GET", "/provision/fetch/client7/"+created.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "client7.ovpn")
	assert.Contains(t, w.Body.String(), "remote vpn.example.com 1194")
	assert.Contains(t, w.Body.String(), "<cert>\nCERT\n</cert>")
}

func TestCreateInvalidIdentity(t *testing.T) {
	f := newProvisionFixture(t)

	w := doRequest(f.router, "POST", "/provision/create/bad..name")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid provision identity")
}

func TestCreateConflict(t *testing.T) {
	f := newProvisionFixture(t)

	_, err := f.bundles.Write("client7", "existing")
	require.NoError(t, err)

	w := doRequest(f.router, "POST", "/provision/create/client7")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	// No task was enqueued.
	_, err = f.store.Claim(context.Background())
	assert.ErrorIs(t, err, tasks.ErrEmpty)
}

func TestCreateDuplicateInFlight(t *testing.T) {
	f := newProvisionFixture(t)

	w := doRequest(f.router, "POST", "/provision/create/client7")
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(f.router, "POST", "/provision/create/client7")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")
}

func TestTaskToolFailure(t *testing.T) {
	f := newProvisionFixture(t)

	w := doRequest(f.router, "POST", "/provision/create/client7")
	require.Equal(t, http.StatusAccepted, w.Code)
	var created dto.CreateProvisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	f.runWorker(t, genFunc(func(ctx context.Context, identity string) error {
		return &ca.ToolError{Stderr: "Easy-RSA error: request failed"}
	}))

	w = doRequest(f.router, "GET", "/provision/task/"+created.Handle)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var result dto.TaskResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Message, "request failed")
	assert.False(t, f.bundles.Exists("client7"))
}

func TestTaskWorkerFailure(t *testing.T) {
	f := newProvisionFixture(t)
	ctx := context.Background()

	handle, err := f.store.Enqueue(ctx, "client7")
	require.NoError(t, err)
	_, err = f.store.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.Complete(ctx, handle, tasks.StateFailure, nil))

	w := doRequest(f.router, "GET", "/provision/task/"+handle.String())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "worker failed")
}

func TestTaskUnknownHandleStillProcessing(t *testing.T) {
	f := newProvisionFixture(t)

	w := doRequest(f.router, "GET", "/provision/task/1f2e3d4c-0000-4000-8000-000000000000")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "processing")
}

func TestFetchWrongToken(t *testing.T) {
	f := newProvisionFixture(t)

	// Regardless of whether the identity was ever provisioned.
	_, err := f.bundles.Write("client7", "doc")
	require.NoError(t, err)

	w := doRequest(f.router, "GET", "/provision/fetch/client7/wrong-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(f.router, "GET", "/provision/fetch/ghost/wrong-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFetchNotProvisioned(t *testing.T) {
	f := newProvisionFixture(t)

	res, err := f.svc.Create(context.Background(), "client7")
	require.NoError(t, err)

	w := doRequest(f.router, "GET", "/provision/fetch/client7/"+res.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
