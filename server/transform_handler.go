package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"VoiceMorph/core/audio"
	"VoiceMorph/logger"
	"VoiceMorph/metrics"
	"VoiceMorph/model"
	"VoiceMorph/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// allowedAudioTypes maps accepted upload MIME types to a file extension.
var allowedAudioTypes = map[string]string{
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
	"audio/mp3":   ".mp3",
	"audio/mpeg":  ".mp3",
	"audio/webm":  ".webm",
}

// uploadExtension validates the part's MIME type and maps it to the staged
// extension. The client's file name never picks the extension.
func uploadExtension(header *multipart.FileHeader) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		return "", false
	}
	ext, ok := allowedAudioTypes[strings.ToLower(mediaType)]
	return ext, ok
}

// safeFilename rejects anything but a bare file name inside the upload dir.
func safeFilename(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

// EffectsHandler returns the effect catalog keyed by id.
func (h *APIHandler) EffectsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

// TransformHandler accepts a multipart upload ("audio", "effect", optional
// "title" and "normalize") and renders the effect.
func (h *APIHandler) TransformHandler(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "NO_FILE", "No audio file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "NO_FILE", "No audio file provided")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
		return
	}

	effect, ok := h.catalog.Lookup(r.FormValue("effect"))
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_EFFECT", "Invalid or missing effect parameter")
		return
	}

	ext, ok := uploadExtension(header)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only audio files are allowed")
		return
	}

	inputName := fmt.Sprintf("audio-%d-%d%s", time.Now().UnixMilli(), uuid.New().ID(), ext)
	inputPath := filepath.Join(h.cfg.UploadDir, inputName)
	if err := saveUpload(file, inputPath); err != nil {
		logger.Error("[Transform] 保存上传文件失败", logger.String("file", inputPath), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store upload")
		return
	}
	metrics.UploadBytes.Observe(float64(header.Size))

	outputName := fmt.Sprintf("processed-%d-%s.wav", time.Now().UnixMilli(), strings.TrimSuffix(inputName, ext))
	outputPath := filepath.Join(h.cfg.UploadDir, outputName)

	fail := func(err error) {
		metrics.TransformsTotal.WithLabelValues(effect.ID, "failure").Inc()
		logger.Error("[Transform] 音频处理失败",
			logger.String("effect", effect.ID),
			logger.String("input", inputName),
			logger.ErrorField(err))
		removeFile(inputPath)
		removeFile(outputPath)
		writeError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "Audio processing failed: "+err.Error())
	}

	start := time.Now()
	meta, err := h.processor.Probe(r.Context(), inputPath)
	if err != nil {
		fail(err)
		return
	}
	hint := meta.Duration
	if hint <= 0 {
		hint = audio.MinDuration
	}

	normalize := formBool(r.FormValue("normalize"))
	_, err = h.processor.Transform(r.Context(), audio.TransformRequest{
		InputPath:  inputPath,
		OutputPath: outputPath,
		EffectID:   effect.ID,
		Options: audio.TransformOptions{
			DurationHint: hint,
			Normalize:    normalize,
		},
	})
	if err != nil {
		fail(err)
		return
	}
	logger.Info("[Transform] 音效处理成功",
		logger.String("effect", effect.ID),
		logger.String("output", outputName),
		logger.Float64("duration", meta.Duration),
		logger.Bool("normalize", normalize))
	metrics.TransformsTotal.WithLabelValues(effect.ID, "success").Inc()
	metrics.TransformDuration.WithLabelValues(effect.ID).Observe(time.Since(start).Seconds())

	var recordingID *int64
	if claims := claimsFromContext(r.Context()); claims != nil {
		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			title = effect.Name + " Effect"
		}
		rec := &model.Recording{
			UserID:           &claims.UserID,
			Title:            title,
			OriginalFilename: inputName,
			EffectType:       effect.ID,
			FileSize:         header.Size,
			Duration:         meta.Duration,
		}
		if err := h.persistRecording(r.Context(), rec, outputName); err != nil {
			logger.Error("[Transform] 保存录音记录失败", logger.Int64("userId", claims.UserID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "Failed to save recording")
			return
		}
		recordingID = &rec.ID
		h.archive(r.Context(), outputPath)
	}

	retention := h.cfg.InputRetention
	time.AfterFunc(retention, func() { removeFile(inputPath) })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"downloadUrl": "/uploads/" + outputName,
		"effect":      effect.Name,
		"recordingId": recordingID,
		"audioInfo": map[string]interface{}{
			"duration": meta.Duration,
			"size":     header.Size,
		},
	})
}

func (h *APIHandler) persistRecording(ctx context.Context, rec *model.Recording, outputName string) error {
	if err := h.recordingRepo.Create(ctx, rec); err != nil {
		return err
	}
	if err := h.recordingRepo.MarkProcessed(ctx, rec.ID, outputName); err != nil {
		return err
	}
	rec.ProcessedFilename = &outputName
	if err := h.userRepo.IncrementTrialCount(ctx, *rec.UserID); err != nil {
		// counters are informational
		logger.Warn("[Transform] 更新试用次数失败", logger.Int64("userId", *rec.UserID), logger.ErrorField(err))
	}
	return nil
}

// archive copies a processed file to the object store, if one is configured.
func (h *APIHandler) archive(ctx context.Context, path string) {
	if h.store == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("[Archive] 打开文件失败", logger.String("file", path), logger.ErrorField(err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return
	}
	key := storage.RecordingKey(path)
	if err := h.store.Put(ctx, key, f, info.Size(), storage.ContentTypeFor(path)); err != nil {
		logger.Warn("[Archive] 归档失败", logger.String("key", key), logger.ErrorField(err))
	}
}

// DownloadHandler serves a processed file as an attachment. ?format=mp3
// converts it first.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	name, ok := safeFilename(mux.Vars(r)["filename"])
	if !ok {
		writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}
	path := filepath.Join(h.cfg.UploadDir, name)
	if !fileExists(path) {
		writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "mp3") && !strings.EqualFold(filepath.Ext(name), ".mp3") {
		mp3Name := strings.TrimSuffix(name, filepath.Ext(name)) + ".mp3"
		mp3Path := filepath.Join(h.cfg.UploadDir, mp3Name)
		if !fileExists(mp3Path) {
			kbps, _ := strconv.Atoi(r.URL.Query().Get("bitrate"))
			if err := h.processor.ConvertToMP3(r.Context(), path, mp3Path, kbps); err != nil {
				logger.Error("[Download] 转换MP3失败", logger.String("file", name), logger.ErrorField(err))
				removeFile(mp3Path)
				writeError(w, http.StatusInternalServerError, "CONVERSION_FAILED", "Failed to convert file")
				return
			}
		}
		name, path = mp3Name, mp3Path
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Type", storage.ContentTypeFor(name))
	http.ServeFile(w, r, path)
}

// WaveformHandler returns peak/RMS buckets of a processed file.
func (h *APIHandler) WaveformHandler(w http.ResponseWriter, r *http.Request) {
	name, ok := safeFilename(mux.Vars(r)["filename"])
	if !ok {
		writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}
	buckets, _ := strconv.Atoi(r.URL.Query().Get("buckets"))

	points, err := h.processor.Waveform(r.Context(), filepath.Join(h.cfg.UploadDir, name), buckets)
	if err != nil {
		if errors.Is(err, audio.ErrInputNotFound) {
			writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
			return
		}
		logger.Error("[Waveform] 生成波形失败", logger.String("file", name), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "Failed to analyze audio")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"points":  points,
	})
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("删除文件失败", logger.String("file", path), logger.ErrorField(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func formBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
