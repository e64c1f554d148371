package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/telspan/vpn-provision/internal/api/http/dto"
)

// hotspotPages is the fixed allow-list of templates clients may fetch.
// Anything else is 404, token or not.
var hotspotPages = map[string]struct{}{
	"login.html":  {},
	"rlogin.html": {},
}

type HotspotHandler struct {
	templateDir string
}

func NewHotspotHandler(templateDir string) *HotspotHandler {
	return &HotspotHandler{templateDir: templateDir}
}

// Page serves a hotspot login template. The route carries the same
// identity/token pair as fetch and is gated by the secret middleware.
func (h *HotspotHandler) Page(ctx *gin.Context) {
	page := ctx.Param("page")

	if _, ok := hotspotPages[page]; !ok {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "page not found"})
		return
	}

	path := filepath.Join(h.templateDir, page)
	if _, err := os.Stat(path); err != nil {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "page not found"})
		return
	}

	ctx.File(path)
}
