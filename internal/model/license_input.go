package model

import "time"

// CreateLicenseInput 创建许可证的输入，ExpiresOn 使用 YYYY-MM-DD 格式
type CreateLicenseInput struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	ExpiresOn string `json:"expires_on"`
	StateID   string `json:"state_id"`
	ProductID string `json:"product_id"`
}

// UpdateLicenseInput 管理端元数据更新，字段按原样覆盖记录
type UpdateLicenseInput struct {
	Key        string     `json:"key"`
	ExpiresOn  string     `json:"expires_on"`
	StateID    string     `json:"state_id"`
	ProductID  string     `json:"product_id"`
	UserID     *string    `json:"user_id"`
	AssignedAt *time.Time `json:"assigned_at"`
}

type AssignLicenseInput struct {
	UserID string `json:"user_id"`
}
