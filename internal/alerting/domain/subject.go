package alerting

import (
	"strings"
	"time"
)

// Subject kinds.
const (
	KindBuilding = "building"
	KindDevice   = "device"
)

// BuildingKey returns the mark key of a building.
func BuildingKey(id string) string {
	return KindBuilding + ":" + id
}

// DeviceKey returns the mark key of a device.
func DeviceKey(id string) string {
	return KindDevice + ":" + id
}

// ParseKey splits a mark key into kind and id.
func ParseKey(key string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(key, ":")
	if !ok || id == "" {
		return "", "", false
	}
	if kind != KindBuilding && kind != KindDevice {
		return "", "", false
	}
	return kind, id, true
}

// BuildingCounts is the aggregated population of one building.
type BuildingCounts struct {
	ID     string
	Name   string
	Counts Counts
}

// CriticalDevice is a device flagged as high priority.
type CriticalDevice struct {
	ID       string
	Name     string
	Building string
	Online   bool
}

// CohortCounts aggregates the critical device cohort.
func CohortCounts(devices []CriticalDevice) Counts {
	counts := Counts{Total: len(devices)}
	for _, device := range devices {
		if !device.Online {
			counts.Offline++
		}
	}
	return counts
}

// Mark is an "already notified" marker.
type Mark struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	MarkedAt  time.Time `json:"marked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the mark has lapsed at now.
func (m Mark) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
