package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"game-license-pool/internal/database"
	"game-license-pool/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// 测试用的路由装配，跳过认证中间件
func newTestApp() *fiber.App {
	app := fiber.New()

	licenses := app.Group("/api/v1/licenses")
	licenses.Get("/", HandleListLicenses)
	licenses.Get("/available", HandleListAvailable)
	licenses.Get("/first-available", HandleGetFirstAvailable)
	licenses.Get("/by-key", HandleFindByKey)
	licenses.Get("/:id", HandleGetLicense)
	licenses.Post("/", HandleLicenseCreate)
	licenses.Put("/:id", HandleLicenseUpdate)
	licenses.Delete("/:id", HandleLicenseDelete)
	licenses.Post("/:id/assign", HandleLicenseAssign)
	licenses.Post("/:id/release", HandleLicenseRelease)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	return resp
}

func TestHandleLicenseCreate(t *testing.T) {
	database.InitTestDB()
	defer database.CleanTestDB()
	InitLicenseService()
	app := newTestApp()

	tests := []struct {
		name       string
		input      model.CreateLicenseInput
		wantStatus int
	}{
		{
			name: "valid_license",
			input: model.CreateLicenseInput{
				ID:        "L1",
				Key:       "KEY-1",
				ExpiresOn: "2026-12-31",
				ProductID: "game-1",
			},
			wantStatus: fiber.StatusCreated,
		},
		{
			name: "duplicate_id",
			input: model.CreateLicenseInput{
				ID:        "L1",
				Key:       "KEY-2",
				ExpiresOn: "2026-12-31",
			},
			wantStatus: fiber.StatusConflict,
		},
		{
			name: "duplicate_key",
			input: model.CreateLicenseInput{
				ID:        "L2",
				Key:       "KEY-1",
				ExpiresOn: "2026-12-31",
			},
			wantStatus: fiber.StatusConflict,
		},
		{
			name: "blank_id",
			input: model.CreateLicenseInput{
				Key:       "KEY-3",
				ExpiresOn: "2026-12-31",
			},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name: "id_too_long",
			input: model.CreateLicenseInput{
				ID:        "AAAAAAAAAAAAAAAAAAAAA",
				Key:       "KEY-3",
				ExpiresOn: "2026-12-31",
			},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name: "blank_key",
			input: model.CreateLicenseInput{
				ID:        "L3",
				ExpiresOn: "2026-12-31",
			},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name: "bad_expiry_format",
			input: model.CreateLicenseInput{
				ID:        "L3",
				Key:       "KEY-3",
				ExpiresOn: "31/12/2026",
			},
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app, "/api/v1/licenses/", tt.input)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestHandleLicenseAssignRelease(t *testing.T) {
	database.InitTestDB()
	defer database.CleanTestDB()
	InitLicenseService()
	app := newTestApp()

	resp := postJSON(t, app, "/api/v1/licenses/", model.CreateLicenseInput{
		ID:        "L1",
		Key:       "KEY-1",
		ExpiresOn: "2026-12-31",
		ProductID: "game-1",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// 首次分配成功
	resp = postJSON(t, app, "/api/v1/licenses/L1/assign", model.AssignLicenseInput{UserID: "U1"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var assigned model.License
	body, _ := io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(body, &assigned))
	assert.Equal(t, model.StateAssigned, assigned.StateID)
	assert.Equal(t, "U1", *assigned.UserID)
	assert.NotNil(t, assigned.AssignedAt)

	// 已分配状态下再次分配返回409
	resp = postJSON(t, app, "/api/v1/licenses/L1/assign", model.AssignLicenseInput{UserID: "U2"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// 空用户ID直接拒绝
	resp = postJSON(t, app, "/api/v1/licenses/L1/assign", model.AssignLicenseInput{UserID: "  "})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// 不存在的许可证返回404
	resp = postJSON(t, app, "/api/v1/licenses/missing/assign", model.AssignLicenseInput{UserID: "U1"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// 释放后回到可用状态
	resp = postJSON(t, app, "/api/v1/licenses/L1/release", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var released model.License
	body, _ = io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(body, &released))
	assert.Equal(t, model.StateAvailable, released.StateID)
	assert.Nil(t, released.UserID)
	assert.Nil(t, released.AssignedAt)

	// 释放后可分配给新用户
	resp = postJSON(t, app, "/api/v1/licenses/L1/assign", model.AssignLicenseInput{UserID: "U2"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandleLicenseQueries(t *testing.T) {
	database.InitTestDB()
	defer database.CleanTestDB()
	InitLicenseService()
	app := newTestApp()

	for _, input := range []model.CreateLicenseInput{
		{ID: "L1", Key: "KEY-1", ExpiresOn: "2026-06-30", ProductID: "game-1"},
		{ID: "L2", Key: "KEY-2", ExpiresOn: "2026-03-31", ProductID: "game-1"},
		{ID: "L3", Key: "KEY-3", ExpiresOn: "2026-09-30", ProductID: "game-2"},
	} {
		resp := postJSON(t, app, "/api/v1/licenses/", input)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	// 列表按到期日升序
	req, _ := http.NewRequest("GET", "/api/v1/licenses/?product_id=game-1", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listBody struct {
		Licenses []model.License `json:"licenses"`
		Total    int64           `json:"total"`
	}
	body, _ := io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(body, &listBody))
	assert.Equal(t, int64(2), listBody.Total)
	assert.Equal(t, "L2", listBody.Licenses[0].ID)

	// 最早到期的可用许可证
	req, _ = http.NewRequest("GET", "/api/v1/licenses/first-available?product_id=game-1", nil)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var first model.License
	body, _ = io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(body, &first))
	assert.Equal(t, "L2", first.ID)

	// 按密钥查找
	req, _ = http.NewRequest("GET", "/api/v1/licenses/by-key?key=KEY-3", nil)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// 不存在的id返回404
	req, _ = http.NewRequest("GET", "/api/v1/licenses/missing", nil)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// 没有可用许可证的产品返回404
	req, _ = http.NewRequest("GET", "/api/v1/licenses/first-available?product_id=game-9", nil)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleLicenseUpdateAndDelete(t *testing.T) {
	database.InitTestDB()
	defer database.CleanTestDB()
	InitLicenseService()
	app := newTestApp()

	resp := postJSON(t, app, "/api/v1/licenses/", model.CreateLicenseInput{
		ID:        "L1",
		Key:       "KEY-1",
		ExpiresOn: "2026-12-31",
		ProductID: "game-1",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// 元数据更新按原样覆盖
	body, _ := json.Marshal(model.UpdateLicenseInput{
		Key:       "KEY-NEW",
		ExpiresOn: "2027-01-31",
		StateID:   "ASSIGNED",
		ProductID: "game-2",
	})
	req, _ := http.NewRequest("PUT", "/api/v1/licenses/L1", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest("PUT", "/api/v1/licenses/missing", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// 删除
	req, _ = http.NewRequest("DELETE", "/api/v1/licenses/L1", nil)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest("DELETE", "/api/v1/licenses/L1", nil)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
