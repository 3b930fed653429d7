package core

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diamondlightsource/glazed/tiled"
)

// DownloadHandler streams raw asset bytes out of Tiled. Registered as
// GET /asset/{run}/{stream}/{det}/{id}. The node is looked up first so an
// unknown dataset or asset id answers 404 instead of leaking an upstream
// error; auth is forwarded on both calls and the byte response is streamed
// through with Tiled's own status and content type.
type DownloadHandler struct {
	client *tiled.Client
}

func NewDownloadHandler(client *tiled.Client) *DownloadHandler {
	return &DownloadHandler{client: client}
}

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	run, stream, det := r.PathValue("run"), r.PathValue("stream"), r.PathValue("det")
	auth := r.Header.Get("Authorization")

	node, err := h.client.Metadata(r.Context(), run+"/"+stream+"/"+det, auth)
	if err != nil {
		var reqErr *tiled.RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		slog.Error("asset lookup failed", "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	known := false
	for _, asset := range node.Data.Attributes.Assets() {
		if asset.ID != nil && *asset.ID == id {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "unknown asset", http.StatusNotFound)
		return
	}

	res, err := h.client.Download(r.Context(), run, stream, det, id, auth)
	if err != nil {
		slog.Error("asset download failed", "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := res.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	if cd := res.Header.Get("Content-Disposition"); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	}
	w.WriteHeader(res.StatusCode)
	io.Copy(w, res.Body)
}
