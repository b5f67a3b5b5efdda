package store

import (
	"errors"
	"strings"
	"time"

	"game-license-pool/internal/model"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("记录不存在")
	ErrConflict = errors.New("记录已存在")
)

// LicenseStore 许可证存储层，只负责按 id 键控的持久化读写，
// 不包含任何业务规则
type LicenseStore struct {
	db *gorm.DB
}

func NewLicenseStore(db *gorm.DB) *LicenseStore {
	return &LicenseStore{db: db}
}

func (s *LicenseStore) Get(id string) (*model.License, error) {
	var license model.License
	result := s.db.Where("id = ?", id).First(&license)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &license, nil
}

func (s *LicenseStore) Exists(id string) (bool, error) {
	var count int64
	result := s.db.Model(&model.License{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (s *LicenseStore) FindByKey(key string) (*model.License, error) {
	var license model.License
	result := s.db.Where("key = ?", key).First(&license)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &license, nil
}

// List 带过滤条件的分页查询，按到期日升序、id 升序排序保证分页结果稳定
func (s *LicenseStore) List(productID, stateID string, page, pageSize int) ([]model.License, int64, error) {
	var licenses []model.License
	var total int64

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	db := s.db.Model(&model.License{})
	if productID != "" {
		db = db.Where("product_id = ?", productID)
	}
	if stateID != "" {
		db = db.Where("UPPER(state_id) = ?", strings.ToUpper(stateID))
	}

	// 获取总数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 获取分页数据
	offset := (page - 1) * pageSize
	if err := db.Order("expires_on ASC, id ASC").Offset(offset).Limit(pageSize).Find(&licenses).Error; err != nil {
		return nil, 0, err
	}

	return licenses, total, nil
}

// FindFirstAvailable 返回指定产品下到期日最早的可用许可证
func (s *LicenseStore) FindFirstAvailable(productID string) (*model.License, error) {
	var license model.License
	result := s.db.
		Where("product_id = ? AND UPPER(state_id) = ?", productID, model.StateAvailable).
		Order("expires_on ASC, id ASC").
		First(&license)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &license, nil
}

// Create 新建记录，id 或 key 已存在时返回 ErrConflict，不改动已有记录
func (s *LicenseStore) Create(license *model.License) (*model.License, error) {
	exists, err := s.Exists(license.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}

	var keyCount int64
	if err := s.db.Model(&model.License{}).Where("key = ?", license.Key).Count(&keyCount).Error; err != nil {
		return nil, err
	}
	if keyCount > 0 {
		return nil, ErrConflict
	}

	if err := s.db.Create(license).Error; err != nil {
		// 唯一索引兜底，并发下的重复插入也归为冲突
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return license, nil
}

// Save 整条覆盖已有记录，记录不存在时返回 ErrNotFound
func (s *LicenseStore) Save(license *model.License) (*model.License, error) {
	exists, err := s.Exists(license.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	if err := s.db.Save(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

func (s *LicenseStore) Delete(id string) error {
	exists, err := s.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.db.Where("id = ?", id).Delete(&model.License{}).Error
}

// AssignIfAvailable 原子条件更新：只有当前状态为 AVAILABLE 时才写入分配字段。
// 读判断和写入是同一条 UPDATE，并发下同一 id 最多一个调用方拿到 true
func (s *LicenseStore) AssignIfAvailable(id, userID string, at time.Time) (bool, error) {
	result := s.db.Model(&model.License{}).
		Where("id = ? AND UPPER(state_id) = ?", id, model.StateAvailable).
		Updates(map[string]interface{}{
			"state_id":    model.StateAssigned,
			"user_id":     userID,
			"assigned_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release 无条件清除分配字段，幂等；记录不存在时返回 ErrNotFound
func (s *LicenseStore) Release(id string, at time.Time) error {
	exists, err := s.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.db.Model(&model.License{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state_id":    model.StateAvailable,
			"user_id":     nil,
			"assigned_at": nil,
			"updated_at":  at,
		}).Error
}
