package model

import "time"

// DailyAssignments 每日分配统计
type DailyAssignments struct {
	Date     time.Time `json:"date"`
	Assigns  int       `json:"assigns"`
	Releases int       `json:"releases"`
}

// PoolStatistics 许可证池统计信息
type PoolStatistics struct {
	TotalLicenses     int64              `json:"total_licenses"`
	AvailableLicenses int64              `json:"available_licenses"`
	AssignedLicenses  int64              `json:"assigned_licenses"`
	ExpiringLicenses  int64              `json:"expiring_licenses"`
	LicensesByProduct map[string]int     `json:"licenses_by_product"`
	DailyAssignments  []DailyAssignments `json:"daily_assignments"`
}

// GetUtilization 计算池的占用率
func (ps *PoolStatistics) GetUtilization() float64 {
	if ps.TotalLicenses == 0 {
		return 0
	}
	return float64(ps.AssignedLicenses) / float64(ps.TotalLicenses)
}

// GetCountByProduct 获取指定产品的许可证数量
func (ps *PoolStatistics) GetCountByProduct(product string) int {
	if count, ok := ps.LicensesByProduct[product]; ok {
		return count
	}
	return 0
}
