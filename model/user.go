package model

import "time"

// DefaultMaxTrials is the trial allowance of a new account.
const DefaultMaxTrials = 10

// User 用户账号. Accounts are deactivated, never deleted.
type User struct {
	ID                int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username          string     `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email             string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash      string     `json:"-" gorm:"size:255;not null"`
	IsActive          bool       `json:"isActive" gorm:"default:true;index"`
	AvatarURL         string     `json:"avatarUrl,omitempty" gorm:"size:500"`
	DisplayName       string     `json:"displayName,omitempty" gorm:"size:100"`
	HasPurchased      bool       `json:"hasPurchased" gorm:"default:false"`
	PurchaseExpiresAt *time.Time `json:"purchaseExpiresAt,omitempty"`
	PurchaseInfo      string     `json:"-" gorm:"type:text"` // JSON
	TrialCount        int        `json:"trialCount" gorm:"default:0"`
	MaxTrials         int        `json:"maxTrials" gorm:"default:10"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// PurchaseActive reports whether the user holds an unexpired purchase at now.
func (u *User) PurchaseActive(now time.Time) bool {
	if !u.HasPurchased {
		return false
	}
	return u.PurchaseExpiresAt == nil || u.PurchaseExpiresAt.After(now)
}

// UserProfile is the public view of a user returned by the API.
type UserProfile struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToProfile 转换为响应格式
func (u *User) ToProfile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

// TrialInfo 试用次数
type TrialInfo struct {
	TrialCount int `json:"trialCount"`
	MaxTrials  int `json:"maxTrials"`
	Remaining  int `json:"remaining"`
}

// Trials returns the user's trial counters.
func (u *User) Trials() TrialInfo {
	remaining := u.MaxTrials - u.TrialCount
	if remaining < 0 {
		remaining = 0
	}
	return TrialInfo{TrialCount: u.TrialCount, MaxTrials: u.MaxTrials, Remaining: remaining}
}
