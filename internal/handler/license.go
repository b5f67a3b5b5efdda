package handler

import (
	"errors"
	"strings"
	"time"

	"game-license-pool/internal/database"
	"game-license-pool/internal/model"
	"game-license-pool/internal/service"
	"game-license-pool/internal/store"

	"github.com/gofiber/fiber/v2"
)

var (
	licenseService *service.LicenseService
	sheetSync      *service.SheetSyncService
)

// InitLicenseService 在数据库初始化完成后装配存储层和分配引擎
func InitLicenseService() {
	licenseService = service.NewLicenseService(store.NewLicenseStore(database.DB))
}

func InitSheetSync(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*service.SheetSyncService, error) {
	var err error
	sheetSync, err = service.NewSheetSyncService(enableSync, credentialPath, spreadsheetID, sheetName)
	return sheetSync, err
}

// 分页参数，默认每页20条，最大100条
func pageParams(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// parseExpiresOn 到期日只接受 YYYY-MM-DD
func parseExpiresOn(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// HandleListLicenses 分页列出许可证，可按产品和状态过滤
func HandleListLicenses(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	stateID := c.Query("state_id")
	page, pageSize := pageParams(c)

	licenses, total, err := licenseService.List(productID, stateID, page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取许可证数据失败",
		})
	}

	return c.JSON(fiber.Map{
		"licenses": licenses,
		"total":    total,
		"page":     page,
	})
}

// HandleListAvailable 列出指定产品下可分配的许可证
func HandleListAvailable(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "产品ID不能为空",
		})
	}
	page, pageSize := pageParams(c)

	licenses, total, err := licenseService.ListAvailable(productID, page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取可用许可证失败",
		})
	}

	return c.JSON(fiber.Map{
		"licenses": licenses,
		"total":    total,
		"page":     page,
	})
}

// HandleGetFirstAvailable 取指定产品下到期日最早的可用许可证
func HandleGetFirstAvailable(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "产品ID不能为空",
		})
	}

	license, err := licenseService.GetAvailable(productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "没有可用的许可证",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询可用许可证失败",
		})
	}

	return c.JSON(license)
}

// HandleFindByKey 按激活密钥查找许可证
func HandleFindByKey(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}

	license, err := licenseService.FindByKey(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询许可证失败",
		})
	}

	return c.JSON(license)
}

// HandleGetLicense 获取单个许可证详情
func HandleGetLicense(c *fiber.Ctx) error {
	id := c.Params("id")

	license, err := licenseService.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询许可证失败",
		})
	}

	return c.JSON(license)
}

// HandleLicenseCreate 创建许可证，id 和 key 重复时返回 409
func HandleLicenseCreate(c *fiber.Ctx) error {
	input := new(model.CreateLicenseInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	input.ID = strings.TrimSpace(input.ID)
	if input.ID == "" || len(input.ID) > 20 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证ID不能为空且不超过20个字符",
		})
	}
	if strings.TrimSpace(input.Key) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}
	expiresOn, err := parseExpiresOn(input.ExpiresOn)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "到期日格式应为 YYYY-MM-DD",
		})
	}

	license := &model.License{
		ID:        input.ID,
		Key:       input.Key,
		ExpiresOn: expiresOn,
		StateID:   input.StateID,
		ProductID: input.ProductID,
	}

	created, err := licenseService.Create(license)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "许可证ID或密钥已存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建许可证失败",
		})
	}

	operatorID, _ := c.Locals("userID").(uint)
	service.LogOperation(operatorID, "create", "license", created.ID, created)

	if sheetSync != nil {
		go sheetSync.SyncLicense(created)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleLicenseUpdate 管理端元数据更新，输入字段按原样覆盖，
// 不重新校验状态与分配字段的一致性
func HandleLicenseUpdate(c *fiber.Ctx) error {
	id := c.Params("id")

	input := new(model.UpdateLicenseInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	if strings.TrimSpace(input.Key) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}
	expiresOn, err := parseExpiresOn(input.ExpiresOn)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "到期日格式应为 YYYY-MM-DD",
		})
	}

	license, err := licenseService.UpdateMetadata(id, input, expiresOn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新许可证失败",
		})
	}

	operatorID, _ := c.Locals("userID").(uint)
	service.LogOperation(operatorID, "update", "license", license.ID, input)

	if sheetSync != nil {
		go sheetSync.SyncLicense(license)
	}

	return c.JSON(fiber.Map{
		"message": "许可证更新成功",
		"license": license,
	})
}

// HandleLicenseAssign 把许可证分配给用户，
// 并发竞争同一许可证时只有一个请求成功
func HandleLicenseAssign(c *fiber.Ctx) error {
	id := c.Params("id")

	input := new(model.AssignLicenseInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "用户ID不能为空",
		})
	}

	license, err := licenseService.Assign(id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		if errors.Is(err, service.ErrNotAvailable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "许可证不可分配",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "分配许可证失败",
		})
	}

	usage := model.LicenseUsage{
		LicenseID: license.ID,
		Action:    "assign",
		UserID:    userID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
		Timestamp: time.Now(),
	}
	database.DB.Create(&usage)

	if sheetSync != nil {
		go sheetSync.SyncLicense(license)
	}

	return c.JSON(license)
}

// HandleLicenseRelease 解除分配，重复调用幂等
func HandleLicenseRelease(c *fiber.Ctx) error {
	id := c.Params("id")

	license, err := licenseService.Release(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "释放许可证失败",
		})
	}

	usage := model.LicenseUsage{
		LicenseID: license.ID,
		Action:    "release",
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
		Timestamp: time.Now(),
	}
	database.DB.Create(&usage)

	if sheetSync != nil {
		go sheetSync.SyncLicense(license)
	}

	return c.JSON(license)
}

// HandleLicenseDelete 删除许可证
func HandleLicenseDelete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := licenseService.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除许可证失败",
		})
	}

	operatorID, _ := c.Locals("userID").(uint)
	service.LogOperation(operatorID, "delete", "license", id, nil)

	return c.JSON(fiber.Map{
		"message": "许可证删除成功",
	})
}

// HandleLicenseUsageLog 查询许可证的分配/释放记录
func HandleLicenseUsageLog(c *fiber.Ctx) error {
	id := c.Params("id")

	var usages []model.LicenseUsage
	result := database.DB.Where("license_id = ?", id).Order("timestamp desc").Limit(20).Find(&usages)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询使用记录失败",
		})
	}

	return c.JSON(fiber.Map{
		"usages": usages,
	})
}
