package service

import (
	"errors"
	"time"

	"game-license-pool/internal/model"
	"game-license-pool/internal/store"
)

// ErrNotAvailable 许可证当前状态不允许分配
var ErrNotAvailable = errors.New("许可证不可分配")

// LicenseService 分配引擎：状态机和互斥约束的唯一入口，
// 所有写操作都经过这里
type LicenseService struct {
	store *store.LicenseStore
}

func NewLicenseService(s *store.LicenseStore) *LicenseService {
	return &LicenseService{store: s}
}

// List 分页列出许可证，productID/stateID 同时给出时取交集
func (s *LicenseService) List(productID, stateID string, page, pageSize int) ([]model.License, int64, error) {
	return s.store.List(productID, stateID, page, pageSize)
}

// ListAvailable 列出指定产品下可分配的许可证，按到期日升序
func (s *LicenseService) ListAvailable(productID string, page, pageSize int) ([]model.License, int64, error) {
	return s.store.List(productID, model.StateAvailable, page, pageSize)
}

// GetAvailable 取指定产品下到期日最早的可用许可证
func (s *LicenseService) GetAvailable(productID string) (*model.License, error) {
	return s.store.FindFirstAvailable(productID)
}

func (s *LicenseService) Get(id string) (*model.License, error) {
	return s.store.Get(id)
}

func (s *LicenseService) FindByKey(key string) (*model.License, error) {
	return s.store.FindByKey(key)
}

// Create 新建许可证，状态为空时默认 AVAILABLE；
// id 或 key 重复由存储层拒绝
func (s *LicenseService) Create(license *model.License) (*model.License, error) {
	if license.StateID == "" {
		license.StateID = model.StateAvailable
	} else {
		license.StateID = model.NormalizeState(license.StateID)
	}
	now := time.Now()
	license.CreatedAt = now
	license.UpdatedAt = now
	return s.store.Create(license)
}

// UpdateMetadata 管理端覆盖写：输入字段原样写入，不重新校验
// 状态与分配字段的一致性（修复异常记录的后门，调用方自行负责）
func (s *LicenseService) UpdateMetadata(id string, input *model.UpdateLicenseInput, expiresOn time.Time) (*model.License, error) {
	license, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	license.Key = input.Key
	license.ExpiresOn = expiresOn
	license.StateID = model.NormalizeState(input.StateID)
	license.ProductID = input.ProductID
	license.UserID = input.UserID
	license.AssignedAt = input.AssignedAt
	license.UpdatedAt = time.Now()

	return s.store.Save(license)
}

// Assign 把许可证分配给用户。前置条件：当前状态为 AVAILABLE
// （大小写不敏感）。同一 id 上的并发分配只有一个成功，
// 失败方立即收到 ErrNotAvailable，记录不会被部分修改
func (s *LicenseService) Assign(id, userID string) (*model.License, error) {
	exists, err := s.store.Exists(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	ok, err := s.store.AssignIfAvailable(id, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}

	return s.store.Get(id)
}

// Release 解除分配，对任何当前状态都生效，重复调用幂等
func (s *LicenseService) Release(id string) (*model.License, error) {
	if err := s.store.Release(id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.store.Get(id)
}

// Delete 删除许可证，不区分当前状态
func (s *LicenseService) Delete(id string) error {
	return s.store.Delete(id)
}
