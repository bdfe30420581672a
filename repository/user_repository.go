package repository

import (
	"context"
	"errors"
	"time"

	"VoiceMorph/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*model.User, error)

	UpdateProfile(ctx context.Context, id int64, displayName, avatarURL string) error
	UpdatePurchase(ctx context.Context, id int64, expiresAt time.Time, info string) error
	IncrementTrialCount(ctx context.Context, id int64) error
	ResetMaxTrials(ctx context.Context, from, to int) (int64, error)
	Deactivate(ctx context.Context, id int64) error
}

// gormUserRepository GORM 实现
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GORM 用户仓库
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create 创建用户. Unique violations map to ErrDuplicateUser.
func (r *gormUserRepository) Create(ctx context.Context, user *model.User) error {
	if user.MaxTrials == 0 {
		user.MaxTrials = model.DefaultMaxTrials
	}
	user.IsActive = true
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (r *gormUserRepository) first(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where(query, args...).
		Where("is_active = ?", true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByID 根据ID获取活跃用户
func (r *gormUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail 根据邮箱获取活跃用户
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByUsername 根据用户名获取活跃用户
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

// ExistsByEmailOrUsername checks all accounts, including deactivated ones.
func (r *gormUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	return count > 0, err
}

// List 分页列出用户
func (r *gormUserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

func (r *gormUserRepository) update(ctx context.Context, id int64, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile 更新显示名称和头像
func (r *gormUserRepository) UpdateProfile(ctx context.Context, id int64, displayName, avatarURL string) error {
	return r.update(ctx, id, map[string]interface{}{
		"display_name": displayName,
		"avatar_url":   avatarURL,
	})
}

// UpdatePurchase 记录购买
func (r *gormUserRepository) UpdatePurchase(ctx context.Context, id int64, expiresAt time.Time, info string) error {
	return r.update(ctx, id, map[string]interface{}{
		"has_purchased":       true,
		"purchase_expires_at": expiresAt,
		"purchase_info":       info,
	})
}

// IncrementTrialCount 试用次数加一
func (r *gormUserRepository) IncrementTrialCount(ctx context.Context, id int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"trial_count": gorm.Expr("trial_count + 1"),
	})
}

// ResetMaxTrials moves every user still on the old allowance to the new one.
func (r *gormUserRepository) ResetMaxTrials(ctx context.Context, from, to int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("max_trials = ?", from).
		Update("max_trials", to)
	return res.RowsAffected, res.Error
}

// Deactivate 停用账号
func (r *gormUserRepository) Deactivate(ctx context.Context, id int64) error {
	return r.update(ctx, id, map[string]interface{}{"is_active": false})
}
