package model

import "time"

// Recording 处理过的录音
type Recording struct {
	ID                int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID            *int64    `json:"userId" gorm:"index"`
	Title             string    `json:"title" gorm:"size:255"`
	OriginalFilename  string    `json:"originalFilename" gorm:"size:255;not null"`
	ProcessedFilename *string   `json:"processedFilename" gorm:"size:255"`
	EffectType        string    `json:"effectType" gorm:"size:50;not null"`
	FileSize          int64     `json:"fileSize"`
	Duration          float64   `json:"duration"`
	IsPublic          bool      `json:"isPublic" gorm:"default:false;index"`
	ShareToken        *string   `json:"shareToken,omitempty" gorm:"size:64;uniqueIndex"`
	PlayCount         int64     `json:"playCount" gorm:"default:0"`
	CreatedAt         time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Recording) TableName() string {
	return "recordings"
}

// RecordingWithOwner is a recording joined with its owner's names.
type RecordingWithOwner struct {
	Recording
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	LikeCount   int64  `json:"likeCount"`
}

// RecordingLike 点赞记录
type RecordingLike struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int64     `json:"userId" gorm:"not null;uniqueIndex:idx_like_user_recording"`
	RecordingID int64     `json:"recordingId" gorm:"not null;uniqueIndex:idx_like_user_recording;index"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName 指定表名
func (RecordingLike) TableName() string {
	return "audio_likes"
}

// AllModels lists every persisted model for migration.
func AllModels() []interface{} {
	return []interface{}{&User{}, &Recording{}, &RecordingLike{}}
}
