package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"VoiceMorph/cache"
	"VoiceMorph/config"
	"VoiceMorph/core/audio"
	"VoiceMorph/core/auth"
	"VoiceMorph/core/effects"
	"VoiceMorph/logger"
	"VoiceMorph/repository"
	"VoiceMorph/storage"
)

// HealthCheck reports the status of one backing component.
type HealthCheck func(ctx context.Context) error

// Dependencies are the services an APIHandler is built from.
type Dependencies struct {
	Config          *config.Config
	Catalog         *effects.Catalog
	Processor       audio.Processor
	Users           repository.UserRepository
	Recordings      repository.RecordingRepository
	Tokens          *auth.TokenService
	LoginLimiter    cache.Limiter
	RegisterLimiter cache.Limiter
	Store           storage.ObjectStore // nil when no archive is configured
	HealthChecks    map[string]HealthCheck
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg             *config.Config
	catalog         *effects.Catalog
	processor       audio.Processor
	userRepo        repository.UserRepository
	recordingRepo   repository.RecordingRepository
	tokens          *auth.TokenService
	loginLimiter    cache.Limiter
	registerLimiter cache.Limiter
	store           storage.ObjectStore
	healthChecks    map[string]HealthCheck
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(deps Dependencies) *APIHandler {
	return &APIHandler{
		cfg:             deps.Config,
		catalog:         deps.Catalog,
		processor:       deps.Processor,
		userRepo:        deps.Users,
		recordingRepo:   deps.Recordings,
		tokens:          deps.Tokens,
		loginLimiter:    deps.LoginLimiter,
		registerLimiter: deps.RegisterLimiter,
		store:           deps.Store,
		healthChecks:    deps.HealthChecks,
	}
}

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// pagination reads ?page and ?limit with defaults 1 and 20.
func pagination(r *http.Request) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
