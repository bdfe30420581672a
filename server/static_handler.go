package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"VoiceMorph/logger"
	"VoiceMorph/storage"
)

// UploadsHandler serves /uploads/<file> from the upload directory and falls
// back to the object archive when the local copy has been swept.
func (h *APIHandler) UploadsHandler(w http.ResponseWriter, r *http.Request) {
	name, ok := safeFilename(strings.TrimPrefix(r.URL.Path, "/uploads/"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.cfg.UploadDir, name)
	if fileExists(path) {
		http.ServeFile(w, r, path)
		return
	}
	if h.store == nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, info, err := h.store.Get(ctx, storage.RecordingKey(name))
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			logger.Error("[Uploads] 读取归档失败", logger.String("file", name), logger.ErrorField(err))
		}
		http.NotFound(w, r)
		return
	}
	defer object.Close()

	contentType := storage.ContentTypeFor(name)
	if info != nil && info.ContentType != "" {
		contentType = info.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	if info != nil && info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("[Uploads] 传输归档文件失败", logger.String("file", name), logger.ErrorField(err))
	}
}

// HealthHandler reports the status of every registered component.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.healthChecks)+1)
	components["uploads"] = "ok"
	if _, err := os.Stat(h.cfg.UploadDir); err != nil {
		components["uploads"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	for name, check := range h.healthChecks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, status, map[string]interface{}{
		"success":    status == http.StatusOK,
		"status":     http.StatusText(status),
		"effects":    h.catalog.Len(),
		"components": components,
	})
}
