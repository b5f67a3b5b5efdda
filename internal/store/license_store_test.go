package store

import (
	"testing"
	"time"

	"game-license-pool/internal/database"
	"game-license-pool/internal/model"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newTestStore() *LicenseStore {
	database.InitTestDB()
	return NewLicenseStore(database.DB)
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func seedLicense(t *testing.T, s *LicenseStore, id, key, state, product, expires string) *model.License {
	t.Helper()
	license, err := s.Create(&model.License{
		ID:        id,
		Key:       key,
		ExpiresOn: date(expires),
		StateID:   state,
		ProductID: product,
	})
	assert.NoError(t, err)
	return license
}

func TestCreateConflict(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-12-31")

	tests := []struct {
		name    string
		license model.License
	}{
		{
			name:    "duplicate_id",
			license: model.License{ID: "L1", Key: "KEY-OTHER", ExpiresOn: date("2027-01-01")},
		},
		{
			name:    "duplicate_key",
			license: model.License{ID: "L2", Key: "KEY-1", ExpiresOn: date("2027-01-01")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(&tt.license)
			assert.ErrorIs(t, err, ErrConflict)
		})
	}

	// 冲突不能改动已有记录
	existing, err := s.Get("L1")
	assert.NoError(t, err)
	assert.Equal(t, "KEY-1", existing.Key)
	assert.Equal(t, date("2026-12-31"), existing.ExpiresOn)
}

// 并发创建时预检查可能同时通过，唯一索引报错必须翻译后归为冲突
func TestCreateDuplicateKeyTranslation(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-12-31")

	// 绕过预检查直接插入，模拟赢得预检查但输掉插入的一方
	err := database.DB.Create(&model.License{
		ID:        "L2",
		Key:       "KEY-1",
		ExpiresOn: date("2027-01-01"),
		StateID:   model.StateAvailable,
	}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestGetAndExists(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-12-31")

	license, err := s.Get("L1")
	assert.NoError(t, err)
	assert.Equal(t, "L1", license.ID)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.Exists("L1")
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists("missing")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestFindByKey(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-12-31")

	license, err := s.FindByKey("KEY-1")
	assert.NoError(t, err)
	assert.Equal(t, "L1", license.ID)

	_, err = s.FindByKey("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrderingAndFilters(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	// 故意乱序插入，到期日相同的用 id 做次级排序
	seedLicense(t, s, "L3", "KEY-3", model.StateAvailable, "game-1", "2026-06-30")
	seedLicense(t, s, "L1", "KEY-1", model.StateAssigned, "game-1", "2026-01-31")
	seedLicense(t, s, "L4", "KEY-4", model.StateAvailable, "game-2", "2026-01-31")
	seedLicense(t, s, "L2", "KEY-2", model.StateAvailable, "game-1", "2026-01-31")

	licenses, total, err := s.List("", "", 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), total)
	ids := make([]string, 0, len(licenses))
	for _, l := range licenses {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"L1", "L2", "L4", "L3"}, ids)

	// 重复查询结果一致
	again, _, err := s.List("", "", 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, licenses, again)

	// 单个过滤条件
	licenses, total, err = s.List("game-1", "", 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// 两个条件取交集，状态比较大小写不敏感
	licenses, total, err = s.List("game-1", "available", 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "L2", licenses[0].ID)
	assert.Equal(t, "L3", licenses[1].ID)
}

func TestListPagination(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-01-31")
	seedLicense(t, s, "L2", "KEY-2", model.StateAvailable, "game-1", "2026-01-31")
	seedLicense(t, s, "L3", "KEY-3", model.StateAvailable, "game-1", "2026-01-31")

	page1, total, err := s.List("", "", 1, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page1, 2)
	assert.Equal(t, "L1", page1[0].ID)
	assert.Equal(t, "L2", page1[1].ID)

	page2, total, err := s.List("", "", 2, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page2, 1)
	assert.Equal(t, "L3", page2[0].ID)

	// 越界的页码在存储层收敛到第一页
	clamped, total, err := s.List("", "", 0, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, page1, clamped)
}

func TestFindFirstAvailable(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAssigned, "game-1", "2026-01-01")
	seedLicense(t, s, "L2", "KEY-2", model.StateAvailable, "game-1", "2026-06-30")
	seedLicense(t, s, "L3", "KEY-3", model.StateAvailable, "game-1", "2026-03-31")

	license, err := s.FindFirstAvailable("game-1")
	assert.NoError(t, err)
	assert.Equal(t, "L3", license.ID)

	_, err = s.FindFirstAvailable("game-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveNotFound(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	_, err := s.Save(&model.License{ID: "missing", Key: "KEY-X", ExpiresOn: date("2026-12-31")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-12-31")

	assert.NoError(t, s.Delete("L1"))
	_, err := s.Get("L1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete("L1"), ErrNotFound)
}

func TestAssignIfAvailable(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	// 状态判断大小写不敏感
	seedLicense(t, s, "L1", "KEY-1", "available", "game-1", "2026-12-31")

	now := time.Now().UTC()
	ok, err := s.AssignIfAvailable("L1", "U1", now)
	assert.NoError(t, err)
	assert.True(t, ok)

	license, err := s.Get("L1")
	assert.NoError(t, err)
	assert.Equal(t, model.StateAssigned, license.StateID)
	assert.NotNil(t, license.UserID)
	assert.Equal(t, "U1", *license.UserID)
	assert.NotNil(t, license.AssignedAt)

	// 已分配状态下条件更新不生效
	ok, err = s.AssignIfAvailable("L1", "U2", now)
	assert.NoError(t, err)
	assert.False(t, ok)

	license, _ = s.Get("L1")
	assert.Equal(t, "U1", *license.UserID)
}

func TestRelease(t *testing.T) {
	s := newTestStore()
	defer database.CleanTestDB()

	seedLicense(t, s, "L1", "KEY-1", model.StateAvailable, "game-1", "2026-12-31")
	now := time.Now().UTC()
	_, err := s.AssignIfAvailable("L1", "U1", now)
	assert.NoError(t, err)

	assert.NoError(t, s.Release("L1", now))

	license, err := s.Get("L1")
	assert.NoError(t, err)
	assert.Equal(t, model.StateAvailable, license.StateID)
	assert.Nil(t, license.UserID)
	assert.Nil(t, license.AssignedAt)

	assert.ErrorIs(t, s.Release("missing", now), ErrNotFound)
}
