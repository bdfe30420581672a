package server

import (
	"net/http"

	"VoiceMorph/metrics"

	"github.com/gorilla/mux"
)

// NewRouter registers every route of the API on a gorilla/mux router. CORS
// wraps the router so preflight requests never reach method matching.
func NewRouter(h *APIHandler) http.Handler {
	router := mux.NewRouter()

	// 音效相关的API端点
	router.HandleFunc("/api/effects", h.EffectsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/transform", h.OptionalAuthMiddleware(h.TransformHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/download/{filename}", h.DownloadHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/waveform/{filename}", h.WaveformHandler).Methods(http.MethodGet)

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/register", RateLimit(h.registerLimiter, "register",
		"Too many registration attempts, please try again later", h.RegisterHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", RateLimit(h.loginLimiter, "login",
		"Too many authentication attempts, please try again later", h.LoginHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.OptionalAuthMiddleware(h.LogoutHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/profile", h.AuthMiddleware(h.ProfileHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/refresh", h.AuthMiddleware(h.RefreshHandler)).Methods(http.MethodPost)

	// 购买与试用
	router.HandleFunc("/api/purchase", h.AuthMiddleware(h.PurchaseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/purchase/status", h.AuthMiddleware(h.PurchaseStatusHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/trials", h.AuthMiddleware(h.TrialsHandler)).Methods(http.MethodGet)

	// 录音相关的API端点
	router.HandleFunc("/api/recordings", h.AuthMiddleware(h.RecordingsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/recordings/{id}", h.AuthMiddleware(h.DeleteRecordingHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/recordings/{id}/share", h.AuthMiddleware(h.ShareHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/recordings/{id}/like", h.AuthMiddleware(h.LikeHandler)).Methods(http.MethodPost, http.MethodDelete)
	router.HandleFunc("/api/share/{token}", h.SharedRecordingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/public", h.PublicHandler).Methods(http.MethodGet)
	router.HandleFunc("/share/{token}", h.SharePageHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/health", h.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	router.PathPrefix("/uploads/").HandlerFunc(h.UploadsHandler).Methods(http.MethodGet, http.MethodHead)

	// Frontend UI serving
	if h.cfg.WebAppDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(h.cfg.WebAppDir)))
	}

	return requestLogger(corsMiddleware(h.cfg.FrontendURL)(router))
}
