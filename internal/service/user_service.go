package service

import (
	"context"
	"strings"

	"casebook-server/internal/model"
	"casebook-server/internal/repository"
	"casebook-server/pkg/util"
)

// UserService 用户服务
// 处理用户资料的查询和更新
type UserService struct {
	userRepo *repository.UserRepository // 用户数据访问层
}

// NewUserService 创建 UserService 实例
func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// GetProfile 获取用户资料
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - *model.User: 用户信息
//   - error: 用户不存在返回 ErrUserNotFound
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfileRequest 更新用户资料请求
// 字段为 nil 表示不修改；gender/phone 为空串、age 为 null 表示清空
type UpdateProfileRequest struct {
	Name   *string            `json:"name"`
	Gender *string            `json:"gender"`
	Age    *model.OptionalInt `json:"age"`
	Phone  *string            `json:"phone"`
}

// UpdateProfile 更新用户资料
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 更新请求
//
// 返回:
//   - *model.User: 更新后的用户信息
//   - error: *ValidationError、ErrUserNotFound 或数据库错误
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*model.User, error) {
	var problems []string
	fields := make(map[string]interface{})

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			problems = append(problems, "姓名不能为空")
		}
		fields["name"] = name
	}
	if req.Gender != nil {
		fields["gender"] = nullableString(*req.Gender)
	}
	if req.Age != nil {
		if req.Age.Valid && (req.Age.Value < 0 || req.Age.Value > 120) {
			problems = append(problems, "年龄必须在0-120之间")
		}
		fields["age"] = req.Age.Ptr()
	}
	if req.Phone != nil {
		fields["phone"] = nullableString(*req.Phone)
	}
	if err := invalid(problems...); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if len(fields) == 0 {
		return user, nil
	}

	if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
		return nil, err
	}

	return s.userRepo.GetByID(ctx, userID)
}

// nullableString 空串存为 NULL
func nullableString(s string) *string {
	return util.StringPtr(strings.TrimSpace(s))
}
