package repository

import (
	"context"
	"errors"

	"VoiceMorph/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordingRepository 录音数据访问接口
type RecordingRepository interface {
	Create(ctx context.Context, rec *model.Recording) error
	MarkProcessed(ctx context.Context, id int64, processedFilename string) error
	GetByID(ctx context.Context, id int64) (*model.Recording, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Recording, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*model.RecordingWithOwner, error)
	GetByShareToken(ctx context.Context, token string) (*model.RecordingWithOwner, error)
	Share(ctx context.Context, id, userID int64) (string, error)
	IncrementPlayCount(ctx context.Context, id int64) error
	Delete(ctx context.Context, id, userID int64) (*model.Recording, error)

	Like(ctx context.Context, id, userID int64) error
	Unlike(ctx context.Context, id, userID int64) error
	CountLikes(ctx context.Context, id int64) (int64, error)
}

// gormRecordingRepository GORM 实现
type gormRecordingRepository struct {
	db *gorm.DB
}

// NewGormRecordingRepository 创建 GORM 录音仓库
func NewGormRecordingRepository(db *gorm.DB) RecordingRepository {
	return &gormRecordingRepository{db: db}
}

// Create 创建录音记录
func (r *gormRecordingRepository) Create(ctx context.Context, rec *model.Recording) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// MarkProcessed sets processed_filename once. A second call returns ErrNotFound.
func (r *gormRecordingRepository) MarkProcessed(ctx context.Context, id int64, processedFilename string) error {
	res := r.db.WithContext(ctx).Model(&model.Recording{}).
		Where("id = ? AND processed_filename IS NULL", id).
		Update("processed_filename", processedFilename)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID 根据ID获取录音
func (r *gormRecordingRepository) GetByID(ctx context.Context, id int64) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByUser 获取用户的录音，最新的在前
func (r *gormRecordingRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Recording, error) {
	var recs []*model.Recording
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	return recs, err
}

// CountByUser 统计用户录音数量
func (r *gormRecordingRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Recording{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *gormRecordingRepository) withOwner(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("recordings AS r").
		Select("r.*, u.username, u.display_name, " +
			"(SELECT COUNT(*) FROM audio_likes l WHERE l.recording_id = r.id) AS like_count").
		Joins("JOIN users AS u ON u.id = r.user_id").
		Where("r.is_public = ? AND u.is_active = ?", true, true)
}

// ListPublic 公开录音，只包含活跃用户的
func (r *gormRecordingRepository) ListPublic(ctx context.Context, limit, offset int) ([]*model.RecordingWithOwner, error) {
	var recs []*model.RecordingWithOwner
	err := r.withOwner(ctx).
		Order("r.created_at DESC, r.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&recs).Error
	return recs, err
}

// GetByShareToken 根据分享令牌获取公开录音
func (r *gormRecordingRepository) GetByShareToken(ctx context.Context, token string) (*model.RecordingWithOwner, error) {
	var recs []*model.RecordingWithOwner
	err := r.withOwner(ctx).
		Where("r.share_token = ?", token).
		Limit(1).
		Scan(&recs).Error
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// Share makes the recording public and returns its share token. An existing
// token is reused. ErrAccessDenied when userID does not own the recording.
func (r *gormRecordingRepository) Share(ctx context.Context, id, userID int64) (string, error) {
	var token string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.Recording
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccessDenied
			}
			return err
		}

		if rec.ShareToken != nil && *rec.ShareToken != "" {
			token = *rec.ShareToken
			return tx.Model(&model.Recording{}).
				Where("id = ? AND user_id = ?", id, userID).
				Update("is_public", true).Error
		}

		fresh := uuid.NewString()
		res := tx.Model(&model.Recording{}).
			Where("id = ? AND user_id = ? AND share_token IS NULL", id, userID).
			Updates(map[string]interface{}{"share_token": fresh, "is_public": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrAccessDenied
		}
		token = fresh
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// IncrementPlayCount 播放次数加一
func (r *gormRecordingRepository) IncrementPlayCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.Recording{}).
		Where("id = ?", id).
		Update("play_count", gorm.Expr("play_count + 1")).Error
}

// Delete removes an owned recording and its likes, returning the deleted row.
func (r *gormRecordingRepository) Delete(ctx context.Context, id, userID int64) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccessDenied
			}
			return err
		}
		if err := tx.Where("recording_id = ?", id).Delete(&model.RecordingLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Recording{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Like 点赞. Liking twice is a no-op.
func (r *gormRecordingRepository) Like(ctx context.Context, id, userID int64) error {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	if !rec.IsPublic && (rec.UserID == nil || *rec.UserID != userID) {
		return ErrAccessDenied
	}
	like := &model.RecordingLike{UserID: userID, RecordingID: id}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like).Error
}

// Unlike 取消点赞
func (r *gormRecordingRepository) Unlike(ctx context.Context, id, userID int64) error {
	return r.db.WithContext(ctx).
		Where("recording_id = ? AND user_id = ?", id, userID).
		Delete(&model.RecordingLike{}).Error
}

// CountLikes 点赞数量
func (r *gormRecordingRepository) CountLikes(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RecordingLike{}).
		Where("recording_id = ?", id).
		Count(&count).Error
	return count, err
}
