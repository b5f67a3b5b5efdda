package main

import (
	"game-license-pool/internal/database"
	"game-license-pool/internal/handler"
	"game-license-pool/internal/middleware"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	// 初始化数据库
	database.InitDB()
	handler.InitLicenseService()

	// 可选的Google Sheet同步
	if os.Getenv("SHEET_SYNC_ENABLED") == "true" {
		_, err := handler.InitSheetSync(
			true,
			os.Getenv("GOOGLE_CREDENTIALS_FILE"),
			os.Getenv("SPREADSHEET_ID"),
			os.Getenv("SHEET_NAME"),
		)
		if err != nil {
			log.Fatal("初始化Sheet同步失败:", err)
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// 中间件
	app.Use(logger.New())
	app.Use(cors.New())

	// 路由组
	api := app.Group("/api/v1")
	// 认证路由
	auth := api.Group("/auth")
	auth.Post("/validate-token", handler.HandleValidateToken)

	// 需要认证的路由
	authProtected := auth.Group("/")
	authProtected.Use(middleware.Auth())
	authProtected.Post("/change-password", handler.HandleChangePassword)
	// 用户路由
	users := api.Group("/users")
	users.Post("/register", handler.HandleUserRegister)
	users.Post("/login", handler.HandleUserLogin)
	users.Get("/info", middleware.Auth(), handler.HandleUserInfo)
	users.Get("/search", middleware.Auth(), middleware.AdminOnly(), handler.HandleSearchUsers)
	users.Get("/login-logs", middleware.Auth(), handler.HandleGetLoginLogs)

	// 许可证路由
	licenses := api.Group("/licenses")
	licenses.Use(middleware.Auth())

	// 查询路由，静态路径要注册在 /:id 之前
	licenses.Get("/", handler.HandleListLicenses)
	licenses.Get("/available", handler.HandleListAvailable)
	licenses.Get("/first-available", handler.HandleGetFirstAvailable)
	licenses.Get("/by-key", handler.HandleFindByKey)
	licenses.Get("/statistics", middleware.AdminOnly(), handler.HandlePoolStatistics)
	licenses.Get("/:id", handler.HandleGetLicense)
	licenses.Get("/:id/usage", handler.HandleLicenseUsageLog)
	licenses.Get("/:id/logs", middleware.AdminOnly(), handler.HandleGetLicenseLogs)

	// 管理员专用路由
	licenses.Post("/", middleware.AdminOnly(), handler.HandleLicenseCreate)
	licenses.Put("/:id", middleware.AdminOnly(), handler.HandleLicenseUpdate)
	licenses.Delete("/:id", middleware.AdminOnly(), handler.HandleLicenseDelete)

	// 分配/释放路由
	licenses.Post("/:id/assign", handler.HandleLicenseAssign)
	licenses.Post("/:id/release", handler.HandleLicenseRelease)

	// 操作日志路由
	logs := api.Group("/logs")
	logs.Use(middleware.Auth(), middleware.AdminOnly())
	logs.Get("/", handler.HandleGetLogs)

	log.Fatal(app.Listen(":80"))
}
