package server

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"VoiceMorph/logger"
	"VoiceMorph/model"
	"VoiceMorph/repository"
	"VoiceMorph/storage"

	"github.com/gorilla/mux"
)

func recordingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid recording id")
		return 0, false
	}
	return id, true
}

func audioURL(rec *model.Recording) string {
	if rec.ProcessedFilename == nil {
		return ""
	}
	return "/uploads/" + *rec.ProcessedFilename
}

// RecordingsHandler lists the caller's recordings, newest first.
func (h *APIHandler) RecordingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "TOKEN_REQUIRED", "Access token required")
		return
	}
	page, limit, offset := pagination(r)

	recs, err := h.recordingRepo.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		logger.Error("[Recordings] 查询录音失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "FETCH_ERROR", "Failed to fetch recordings")
		return
	}
	total, err := h.recordingRepo.CountByUser(r.Context(), userID)
	if err != nil {
		logger.Error("[Recordings] 统计录音失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "FETCH_ERROR", "Failed to fetch recordings")
		return
	}
	if recs == nil {
		recs = []*model.Recording{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"recordings": recs,
		"page":       page,
		"limit":      limit,
		"total":      total,
	})
}

// DeleteRecordingHandler removes an owned recording and its files.
func (h *APIHandler) DeleteRecordingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := recordingID(w, r)
	if !ok {
		return
	}
	userID, _ := GetUserIDFromContext(r.Context())

	rec, err := h.recordingRepo.Delete(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccessDenied) {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Recording not found or access denied")
			return
		}
		logger.Error("[Recordings] 删除录音失败", logger.Int64("id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "DELETE_ERROR", "Failed to delete recording")
		return
	}

	removeFile(filepath.Join(h.cfg.UploadDir, filepath.Base(rec.OriginalFilename)))
	if rec.ProcessedFilename != nil {
		name := filepath.Base(*rec.ProcessedFilename)
		removeFile(filepath.Join(h.cfg.UploadDir, name))
		if h.store != nil {
			if err := h.store.Delete(r.Context(), storage.RecordingKey(name)); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				logger.Warn("[Archive] 删除归档失败", logger.String("file", name), logger.ErrorField(err))
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Recording deleted",
	})
}

// ShareHandler makes a recording public and returns its share link.
func (h *APIHandler) ShareHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := recordingID(w, r)
	if !ok {
		return
	}
	userID, _ := GetUserIDFromContext(r.Context())

	token, err := h.recordingRepo.Share(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccessDenied) {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Recording not found or access denied")
			return
		}
		logger.Error("[Share] 分享录音失败", logger.Int64("id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "SHARE_ERROR", "Failed to share recording")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Recording shared successfully",
		"shareToken": token,
		"shareUrl":   requestOrigin(r) + "/share/" + token,
	})
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// LikeHandler likes (POST) or unlikes (DELETE) a recording.
func (h *APIHandler) LikeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := recordingID(w, r)
	if !ok {
		return
	}
	userID, _ := GetUserIDFromContext(r.Context())

	var err error
	if r.Method == http.MethodDelete {
		err = h.recordingRepo.Unlike(r.Context(), id, userID)
	} else {
		err = h.recordingRepo.Like(r.Context(), id, userID)
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Recording not found")
		return
	case errors.Is(err, repository.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Recording is not public")
		return
	case err != nil:
		logger.Error("[Like] 点赞操作失败", logger.Int64("id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "LIKE_ERROR", "Failed to update like")
		return
	}

	count, err := h.recordingRepo.CountLikes(r.Context(), id)
	if err != nil {
		logger.Warn("[Like] 统计点赞失败", logger.Int64("id", id), logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"liked":     r.Method != http.MethodDelete,
		"likeCount": count,
	})
}

// sharedRecording loads a public recording by token and counts the play.
func (h *APIHandler) sharedRecording(w http.ResponseWriter, r *http.Request) (*model.RecordingWithOwner, bool) {
	token := mux.Vars(r)["token"]
	rec, err := h.recordingRepo.GetByShareToken(r.Context(), token)
	if err != nil {
		logger.Error("[Share] 查询分享录音失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "FETCH_ERROR", "Failed to fetch recording")
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Recording not found or not public")
		return nil, false
	}
	if err := h.recordingRepo.IncrementPlayCount(r.Context(), rec.ID); err != nil {
		logger.Warn("[Share] 更新播放次数失败", logger.Int64("id", rec.ID), logger.ErrorField(err))
	} else {
		rec.PlayCount++
	}
	return rec, true
}

// SharedRecordingHandler returns the public metadata of a shared recording.
func (h *APIHandler) SharedRecordingHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.sharedRecording(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"recording": map[string]interface{}{
			"title":        rec.Title,
			"effect_type":  rec.EffectType,
			"duration":     rec.Duration,
			"created_at":   rec.CreatedAt,
			"play_count":   rec.PlayCount,
			"like_count":   rec.LikeCount,
			"username":     rec.Username,
			"display_name": rec.DisplayName,
			"audioUrl":     audioURL(&rec.Recording),
		},
	})
}

var sharePage = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - VoiceMorph</title>
<meta property="og:title" content="{{.Title}}">
<meta property="og:audio" content="{{.AudioURL}}">
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>Effect: {{.Effect}}</p>
<p>By: {{.Author}}</p>
<p>Created: {{.Created}}</p>
<p>Plays: {{.Plays}}</p>
<audio controls src="{{.AudioURL}}"></audio>
</main>
</body>
</html>
`))

type sharePageData struct {
	Title    string
	Effect   string
	Author   string
	Created  string
	Plays    int64
	AudioURL string
}

// SharePageHandler renders a minimal player page for a shared recording.
func (h *APIHandler) SharePageHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	rec, err := h.recordingRepo.GetByShareToken(r.Context(), token)
	if err != nil {
		logger.Error("[Share] 查询分享录音失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Recording not found", http.StatusNotFound)
		return
	}

	effect := rec.EffectType
	if def, ok := h.catalog.Lookup(rec.EffectType); ok {
		effect = def.Name
	}
	author := rec.DisplayName
	if author == "" {
		author = rec.Username
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = sharePage.Execute(w, sharePageData{
		Title:    rec.Title,
		Effect:   effect,
		Author:   author,
		Created:  rec.CreatedAt.Format(time.DateOnly),
		Plays:    rec.PlayCount,
		AudioURL: audioURL(&rec.Recording),
	})
	if err != nil {
		logger.Error("[Share] 渲染分享页面失败", logger.ErrorField(err))
	}
}

// PublicHandler lists public recordings of active users.
func (h *APIHandler) PublicHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	recs, err := h.recordingRepo.ListPublic(r.Context(), limit, offset)
	if err != nil {
		logger.Error("[Public] 查询公开录音失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "FETCH_ERROR", "Failed to fetch recordings")
		return
	}

	items := make([]map[string]interface{}, 0, len(recs))
	for _, rec := range recs {
		items = append(items, map[string]interface{}{
			"id":           rec.ID,
			"title":        rec.Title,
			"effect_type":  rec.EffectType,
			"duration":     rec.Duration,
			"created_at":   rec.CreatedAt,
			"play_count":   rec.PlayCount,
			"like_count":   rec.LikeCount,
			"share_token":  rec.ShareToken,
			"username":     rec.Username,
			"display_name": rec.DisplayName,
			"audioUrl":     audioURL(&rec.Recording),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"recordings": items,
		"page":       page,
		"limit":      limit,
	})
}
