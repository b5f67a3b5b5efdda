package model

import (
	"time"

	"gorm.io/gorm"
)

type LicenseUsage struct {
	gorm.Model
	LicenseID string    `json:"license_id" gorm:"index"`
	Action    string    `json:"action"` // "assign", "release", etc.
	UserID    string    `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}
