package server

import (
	"encoding/json"
	"net/http"
	"time"

	"VoiceMorph/logger"
)

// plan is a simulated subscription offer.
type plan struct {
	Price    float64
	Duration time.Duration
}

var plans = map[string]plan{
	"monthly": {Price: 9.99, Duration: 30 * 24 * time.Hour},
	"yearly":  {Price: 99.99, Duration: 365 * 24 * time.Hour},
}

// PurchaseInfo is stored as JSON on the user row.
type PurchaseInfo struct {
	PlanType     string    `json:"planType"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	PurchaseDate time.Time `json:"purchaseDate"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// PurchaseHandler records a simulated purchase; no payment processor is involved.
func (h *APIHandler) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "TOKEN_REQUIRED", "Access token required")
		return
	}

	var req struct {
		PlanType string `json:"planType"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	p, ok := plans[req.PlanType]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_PLAN", "Invalid plan type")
		return
	}

	now := time.Now().UTC()
	info := PurchaseInfo{
		PlanType:     req.PlanType,
		Price:        p.Price,
		Currency:     "USD",
		Status:       "completed",
		PurchaseDate: now,
		ExpiresAt:    now.Add(p.Duration),
	}
	raw, err := json.Marshal(info)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "PURCHASE_ERROR", "Purchase failed")
		return
	}

	if err := h.userRepo.UpdatePurchase(r.Context(), userID, info.ExpiresAt, string(raw)); err != nil {
		logger.Error("[Purchase] 更新购买信息失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "PURCHASE_ERROR", "Purchase failed")
		return
	}

	logger.Info("[Purchase] 购买成功", logger.Int64("userId", userID), logger.String("plan", req.PlanType))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Purchase completed successfully",
		"purchase": info,
	})
}

// PurchaseStatusHandler reports whether the user holds an unexpired purchase.
func (h *APIHandler) PurchaseStatusHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	now := time.Now()
	expired := user.PurchaseExpiresAt != nil && user.PurchaseExpiresAt.Before(now)

	var info *PurchaseInfo
	if user.PurchaseInfo != "" {
		var parsed PurchaseInfo
		if err := json.Unmarshal([]byte(user.PurchaseInfo), &parsed); err == nil {
			info = &parsed
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hasPurchased":    user.PurchaseActive(now),
		"purchaseExpired": expired,
		"purchaseInfo":    info,
	})
}

// TrialsHandler returns the trial counters. They are tracked, not enforced.
func (h *APIHandler) TrialsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	trials := user.Trials()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"trialCount": trials.TrialCount,
		"maxTrials":  trials.MaxTrials,
		"remaining":  trials.Remaining,
	})
}
