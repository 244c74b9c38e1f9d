package inventory

import "time"

// Device status values reported by the ingestion process.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Building is a site grouping networks.
type Building struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Network is a voice network segment.
type Network struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// BuildingNetwork associates networks with buildings.
type BuildingNetwork struct {
	BuildingID string `gorm:"primaryKey"`
	NetworkID  string `gorm:"primaryKey;index"`
}

// Device is a monitored phone or gateway.
type Device struct {
	ID         string    `gorm:"primaryKey"`
	Name       string    `gorm:"not null"`
	NetworkID  string    `gorm:"index"`
	Status     string    `gorm:"not null;default:offline"`
	IsCritical bool      `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// NotificationSetting holds the global alert thresholds.
type NotificationSetting struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	LowerThreshold float64   `gorm:"not null"`
	UpperThreshold float64   `gorm:"not null"`
	IsActive       bool      `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// Recipient is a notification destination.
type Recipient struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Name   string
	Email  string `gorm:"not null;uniqueIndex"`
	Active bool   `gorm:"not null"`
}

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&Building{},
		&Network{},
		&BuildingNetwork{},
		&Device{},
		&NotificationSetting{},
		&Recipient{},
	}
}
