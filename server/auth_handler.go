package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"VoiceMorph/core/auth"
	"VoiceMorph/logger"
	"VoiceMorph/model"
	"VoiceMorph/repository"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

const minPasswordLength = 6

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"` // 可以是用户名或邮箱
	Password string `json:"password"`
}

// validate returns the error code and message of the first failed rule.
func (req *RegisterRequest) validate() (code, message string) {
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "":
		return "MISSING_FIELDS", "All fields are required"
	case req.Password != req.ConfirmPassword:
		return "PASSWORD_MISMATCH", "Passwords do not match"
	case !emailPattern.MatchString(req.Email):
		return "INVALID_EMAIL", "Invalid email format"
	case !usernamePattern.MatchString(req.Username):
		return "INVALID_USERNAME", "Username must be 3-20 characters, letters, numbers and underscores only"
	case len(req.Password) < minPasswordLength:
		return "WEAK_PASSWORD", "Password must be at least 6 characters long"
	}
	return "", ""
}

func identityOf(u *model.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Username: u.Username}
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "All fields are required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if code, msg := req.validate(); code != "" {
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	exists, err := h.userRepo.ExistsByEmailOrUsername(r.Context(), req.Email, req.Username)
	if err != nil {
		logger.Error("[Register] 查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "REGISTRATION_ERROR", "Registration failed")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "USER_EXISTS", "User with this email or username already exists")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] 密码加密失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "REGISTRATION_ERROR", "Registration failed")
		return
	}

	user := &model.User{Username: req.Username, Email: req.Email, PasswordHash: hashed}
	if err := h.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "USER_EXISTS", "User with this email or username already exists")
			return
		}
		logger.Error("[Register] 创建用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "REGISTRATION_ERROR", "Registration failed")
		return
	}

	token, err := h.tokens.Issue(identityOf(user))
	if err != nil {
		logger.Error("[Register] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "REGISTRATION_ERROR", "Registration failed")
		return
	}

	logger.Info("[Register] 注册成功", logger.String("username", user.Username))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User registered successfully",
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
		"token": token,
	})
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and password are required")
		return
	}

	// 查询用户 - 支持用户名或邮箱登录
	var user *model.User
	var err error
	if strings.Contains(req.Email, "@") {
		user, err = h.userRepo.GetByEmail(r.Context(), req.Email)
	} else {
		user, err = h.userRepo.GetByUsername(r.Context(), req.Email)
	}
	if err != nil {
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "LOGIN_ERROR", "Login failed")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 登录失败", logger.String("login", req.Email))
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	token, err := h.tokens.Issue(identityOf(user))
	if err != nil {
		logger.Error("[Login] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "LOGIN_ERROR", "Login failed")
		return
	}

	logger.Info("[Login] 登录成功", logger.String("username", user.Username))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Login successful",
		"user":    user.ToProfile(),
		"token":   token,
	})
}

// LogoutHandler revokes the presented token, if any.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if claims := claimsFromContext(r.Context()); claims != nil {
		if err := h.tokens.Revoke(r.Context(), claims); err != nil {
			logger.Error("[Logout] 吊销Token失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "LOGOUT_ERROR", "Logout failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

// currentUser loads the authenticated user, writing USER_NOT_FOUND when gone.
func (h *APIHandler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "TOKEN_REQUIRED", "Access token required")
		return nil, false
	}
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		logger.Error("查询用户失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return nil, false
	}
	return user, true
}

// ProfileHandler returns the authenticated user.
func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// RefreshHandler issues a fresh token for the authenticated user.
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	token, err := h.tokens.Issue(identityOf(user))
	if err != nil {
		logger.Error("[Refresh] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "REFRESH_ERROR", "Failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
	})
}
