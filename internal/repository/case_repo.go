package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"casebook-server/internal/model"
)

// CaseRepository 病例数据访问层
// 所有查询都带上 user_id 条件，保证只能访问自己的病例
type CaseRepository struct {
	db *gorm.DB
}

// NewCaseRepository 创建 CaseRepository 实例
func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create 创建病例
// 参数:
//   - ctx: 上下文
//   - c: 病例对象，ID 和时间字段会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *CaseRepository) Create(ctx context.Context, c *model.Case) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListByUser 获取用户的全部病例，最新的在前
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []model.Case: 病例列表
//   - error: 数据库错误
func (r *CaseRepository) ListByUser(ctx context.Context, userID int64) ([]model.Case, error) {
	var cases []model.Case
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC"). // 同一时刻创建的病例按 ID 倒序
		Find(&cases).Error
	return cases, err
}

// GetByIDAndUser 获取用户的单个病例
// 参数:
//   - ctx: 上下文
//   - id: 病例ID
//   - userID: 用户ID
//
// 返回:
//   - *model.Case: 病例对象，不存在或不属于该用户时返回 nil
//   - error: 数据库错误
func (r *CaseRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Case, error) {
	var c model.Case
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpdateByIDAndUser 覆盖病例的内容字段
// 参数:
//   - ctx: 上下文
//   - id: 病例ID
//   - userID: 用户ID
//   - fields: 要更新的列
//
// 返回:
//   - int64: 受影响的行数，0 表示病例不存在或不属于该用户
//   - error: 数据库错误
func (r *CaseRepository) UpdateByIDAndUser(ctx context.Context, id, userID int64, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Case{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// DeleteByIDAndUser 删除用户的病例
// 参数:
//   - ctx: 上下文
//   - id: 病例ID
//   - userID: 用户ID
//
// 返回:
//   - int64: 受影响的行数
//   - error: 数据库错误
func (r *CaseRepository) DeleteByIDAndUser(ctx context.Context, id, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Case{})
	return result.RowsAffected, result.Error
}
