package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	activity "voip-monitor/internal/activity/domain"
	alerting "voip-monitor/internal/alerting/domain"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the dashboard database.
func Open(driver, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("inventory: empty dsn")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch strings.ToLower(driver) {
	case DriverPostgres, "":
		return gorm.Open(postgres.Open(dsn), cfg)
	case DriverSQLite:
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("inventory: unsupported driver %q", driver)
	}
}

// Migrate creates the inventory tables when they are missing.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("inventory: nil db")
	}
	return db.AutoMigrate(Models()...)
}

// Repository reads devices, buildings, settings and recipients.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("inventory: nil db")
	}
	return &Repository{db: db}, nil
}

// ListDeviceStatuses returns the current status of every device.
func (r *Repository) ListDeviceStatuses(ctx context.Context) ([]activity.DeviceStatus, error) {
	var devices []Device
	if err := r.db.WithContext(ctx).Order("id").Find(&devices).Error; err != nil {
		return nil, err
	}
	result := make([]activity.DeviceStatus, 0, len(devices))
	for _, device := range devices {
		result = append(result, activity.DeviceStatus{
			EntityID: device.ID,
			Online:   isOnline(device.Status),
		})
	}
	return result, nil
}

type buildingRow struct {
	ID      string
	Name    string
	Total   int
	Offline int
}

// BuildingCounts aggregates devices reachable through each building's networks.
func (r *Repository) BuildingCounts(ctx context.Context) ([]alerting.BuildingCounts, error) {
	var rows []buildingRow
	err := r.db.WithContext(ctx).Raw(`
SELECT b.id AS id, b.name AS name,
	COUNT(DISTINCT d.id) AS total,
	COUNT(DISTINCT CASE WHEN LOWER(TRIM(COALESCE(d.status, ''))) <> ? THEN d.id END) AS offline
FROM buildings b
LEFT JOIN building_networks bn ON bn.building_id = b.id
LEFT JOIN devices d ON d.network_id = bn.network_id
GROUP BY b.id, b.name
ORDER BY b.id`, StatusOnline).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]alerting.BuildingCounts, 0, len(rows))
	for _, row := range rows {
		result = append(result, alerting.BuildingCounts{
			ID:     row.ID,
			Name:   row.Name,
			Counts: alerting.Counts{Total: row.Total, Offline: row.Offline},
		})
	}
	return result, nil
}

type criticalRow struct {
	ID       string
	Name     string
	Status   string
	Building string
}

// CriticalDevices returns every device flagged as high priority.
func (r *Repository) CriticalDevices(ctx context.Context) ([]alerting.CriticalDevice, error) {
	var rows []criticalRow
	err := r.db.WithContext(ctx).Raw(`
SELECT d.id AS id, d.name AS name, d.status AS status, COALESCE(MIN(b.name), '') AS building
FROM devices d
LEFT JOIN building_networks bn ON bn.network_id = d.network_id
LEFT JOIN buildings b ON b.id = bn.building_id
WHERE d.is_critical = ?
GROUP BY d.id, d.name, d.status
ORDER BY d.id`, true).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]alerting.CriticalDevice, 0, len(rows))
	for _, row := range rows {
		result = append(result, alerting.CriticalDevice{
			ID:       row.ID,
			Name:     row.Name,
			Building: row.Building,
			Online:   isOnline(row.Status),
		})
	}
	return result, nil
}

// AlertThresholds returns the first settings row. No row means alerts are inactive.
func (r *Repository) AlertThresholds(ctx context.Context) (alerting.Thresholds, error) {
	var setting NotificationSetting
	err := r.db.WithContext(ctx).Order("id").First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return alerting.Thresholds{}, nil
	}
	if err != nil {
		return alerting.Thresholds{}, err
	}
	return alerting.Thresholds{
		Lower:  setting.LowerThreshold,
		Upper:  setting.UpperThreshold,
		Active: setting.IsActive,
	}, nil
}

// SaveThresholds replaces the global alert thresholds.
func (r *Repository) SaveThresholds(ctx context.Context, thresholds alerting.Thresholds) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting NotificationSetting
		err := tx.Order("id").First(&setting).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		setting.LowerThreshold = thresholds.Lower
		setting.UpperThreshold = thresholds.Upper
		setting.IsActive = thresholds.Active
		return tx.Save(&setting).Error
	})
}

// Recipients returns the e-mail address of every active recipient.
func (r *Repository) Recipients(ctx context.Context) ([]string, error) {
	var recipients []Recipient
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("email").Find(&recipients).Error; err != nil {
		return nil, err
	}
	result := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		email := strings.TrimSpace(recipient.Email)
		if email != "" {
			result = append(result, email)
		}
	}
	return result, nil
}

// isOnline must match the status normalization in BuildingCounts.
func isOnline(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusOnline)
}
