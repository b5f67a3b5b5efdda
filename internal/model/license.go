package model

import (
	"strings"
	"time"
)

// 许可证状态，引擎只识别这两个值，其他值一律视为不可分配
const (
	StateAvailable = "AVAILABLE"
	StateAssigned  = "ASSIGNED"
)

type License struct {
	ID         string     `json:"id" gorm:"primaryKey;size:20"`
	Key        string     `json:"key" gorm:"uniqueIndex;not null"`
	ExpiresOn  time.Time  `json:"expires_on" gorm:"not null"`
	StateID    string     `json:"state_id"`
	ProductID  string     `json:"product_id" gorm:"index"`
	UserID     *string    `json:"user_id"`
	AssignedAt *time.Time `json:"assigned_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NormalizeState 在存储边界把状态字符串映射到已知常量，未识别的值原样保留
func NormalizeState(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case StateAvailable:
		return StateAvailable
	case StateAssigned:
		return StateAssigned
	}
	return s
}
