package service

import (
	"context"
	"time"

	"casebook-server/internal/draft"
)

// SlotFunc 按用户返回草稿槽位
type SlotFunc func(userID int64) draft.Slot

// DraftService 服务端草稿
// 每个用户一个槽位，提交后写入数据库病例集合
type DraftService struct {
	slots       SlotFunc
	caseService *CaseService
	clock       func() time.Time
}

// NewDraftService 创建 DraftService 实例
func NewDraftService(slots SlotFunc, caseService *CaseService) *DraftService {
	return &DraftService{
		slots:       slots,
		caseService: caseService,
		clock:       time.Now,
	}
}

// Open 为用户创建草稿管理器并恢复已保存的草稿
// 管理器只在当前请求内使用
func (s *DraftService) Open(ctx context.Context, userID int64) (*draft.Manager, error) {
	m := draft.NewManager(
		s.slots(userID),
		s.caseService.Collection(userID),
		draft.WithClock(s.clock),
	)
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// EditCase 把已提交的病例放回草稿槽位，覆盖当前草稿
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - caseID: 病例ID
//
// 返回:
//   - draft.Record: 放回槽位的草稿
//   - error: 病例不存在返回 ErrCaseNotFound
func (s *DraftService) EditCase(ctx context.Context, userID, caseID int64) (draft.Record, error) {
	view, err := s.caseService.GetCase(ctx, userID, caseID)
	if err != nil {
		return draft.Record{}, err
	}

	m, err := s.Open(ctx, userID)
	if err != nil {
		return draft.Record{}, err
	}
	if err := m.Open(ctx, view.Record()); err != nil {
		return draft.Record{}, err
	}
	return m.Record(), nil
}

// Reset 放弃用户的草稿
// 不读取槽位中的旧内容，槽位数据损坏时同样可以清空
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - draft.Record: 清空后的新草稿
//   - error: 槽位删除失败时返回错误
func (s *DraftService) Reset(ctx context.Context, userID int64) (draft.Record, error) {
	m := draft.NewManager(
		s.slots(userID),
		s.caseService.Collection(userID),
		draft.WithClock(s.clock),
	)
	if err := m.Reset(ctx); err != nil {
		return draft.Record{}, err
	}
	return m.Record(), nil
}
