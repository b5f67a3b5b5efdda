package handler

import (
	"game-license-pool/internal/database"
	"game-license-pool/internal/model"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandlePoolStatistics 处理许可证池统计信息请求
func HandlePoolStatistics(c *fiber.Ctx) error {
	// 获取查询参数
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")

	// 解析日期
	var start, end time.Time
	var err error

	if startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    400,
				"message": "开始日期格式错误",
				"errors": []fiber.Map{
					{"field": "start_date", "message": "日期格式应为 YYYY-MM-DD"},
				},
			})
		}
	} else {
		// 默认为30天前
		start = time.Now().AddDate(0, 0, -30)
	}

	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    400,
				"message": "结束日期格式错误",
				"errors": []fiber.Map{
					{"field": "end_date", "message": "日期格式应为 YYYY-MM-DD"},
				},
			})
		}
	} else {
		// 默认为当前时间
		end = time.Now()
	}

	// 获取数据库连接
	db := database.DB

	// 构建统计信息
	stats := &model.PoolStatistics{
		LicensesByProduct: make(map[string]int),
		DailyAssignments:  make([]model.DailyAssignments, 0),
	}

	// 统计许可证总数
	if err := db.Model(&model.License{}).Count(&stats.TotalLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取许可证总数失败",
		})
	}

	// 统计可用许可证数
	if err := db.Model(&model.License{}).
		Where("UPPER(state_id) = ?", model.StateAvailable).
		Count(&stats.AvailableLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取可用许可证数失败",
		})
	}

	// 统计已分配许可证数
	if err := db.Model(&model.License{}).
		Where("UPPER(state_id) = ?", model.StateAssigned).
		Count(&stats.AssignedLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取已分配许可证数失败",
		})
	}

	// 统计即将过期的许可证数（30天内）
	thirtyDaysLater := time.Now().AddDate(0, 0, 30)
	if err := db.Model(&model.License{}).
		Where("expires_on <= ?", thirtyDaysLater).
		Count(&stats.ExpiringLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取即将过期许可证数失败",
		})
	}

	// 按产品统计许可证数量
	var productStats []struct {
		ProductID string
		Count     int
	}
	if err := db.Model(&model.License{}).
		Select("product_id, count(*) as count").
		Group("product_id").
		Scan(&productStats).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取产品统计失败",
		})
	}
	for _, ps := range productStats {
		stats.LicensesByProduct[ps.ProductID] = ps.Count
	}

	// 获取每日分配/释放统计
	var dailyStats []model.DailyAssignments
	if err := db.Model(&model.LicenseUsage{}).
		Select("DATE(timestamp) as date, "+
			"SUM(CASE WHEN action = 'assign' THEN 1 ELSE 0 END) as assigns, "+
			"SUM(CASE WHEN action = 'release' THEN 1 ELSE 0 END) as releases").
		Where("timestamp BETWEEN ? AND ?", start, end).
		Group("DATE(timestamp)").
		Order("date ASC").
		Scan(&dailyStats).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取每日分配统计失败",
		})
	}
	stats.DailyAssignments = dailyStats

	return c.JSON(fiber.Map{
		"code":    200,
		"message": "success",
		"data":    stats,
	})
}
