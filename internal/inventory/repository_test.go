package inventory

import (
	"context"
	"path/filepath"
	"testing"

	alerting "voip-monitor/internal/alerting/domain"
)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Skipf("sqlite migrate failed: %v", err)
	}
	repo, err := NewRepository(db)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo
}

func seed(t *testing.T, repo *Repository, values ...any) {
	t.Helper()
	for _, value := range values {
		if err := repo.db.Create(value).Error; err != nil {
			t.Fatalf("seed %T: %v", value, err)
		}
	}
}

func TestBuildingCountsAcrossNetworks(t *testing.T) {
	repo := openTestRepository(t)
	seed(t, repo,
		&Building{ID: "B", Name: "Main Hall"},
		&Building{ID: "E", Name: "Empty Annex"},
		&Network{ID: "n1", Name: "Floor 1"},
		&Network{ID: "n2", Name: "Floor 2"},
		&BuildingNetwork{BuildingID: "B", NetworkID: "n1"},
		&BuildingNetwork{BuildingID: "B", NetworkID: "n2"},
	)
	for i, status := range []string{StatusOnline, StatusOffline, StatusOnline, StatusOffline, StatusOnline} {
		network := "n1"
		if i >= 3 {
			network = "n2"
		}
		seed(t, repo, &Device{ID: string(rune('a' + i)), Name: "phone", NetworkID: network, Status: status})
	}
	seed(t, repo, &Device{ID: "f", Name: "softphone", NetworkID: "n2", Status: " Online "})

	counts, err := repo.BuildingCounts(context.Background())
	if err != nil {
		t.Fatalf("building counts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 buildings, got %+v", counts)
	}
	if counts[0].ID != "B" || counts[0].Counts.Total != 6 || counts[0].Counts.Offline != 2 {
		t.Fatalf("unexpected main hall counts %+v", counts[0])
	}
	if counts[1].ID != "E" || counts[1].Counts.Total != 0 {
		t.Fatalf("expected empty building, got %+v", counts[1])
	}
	if alerting.Evaluate(counts[1].Counts, alerting.Thresholds{Lower: 10, Upper: 25}) != alerting.LevelNormal {
		t.Fatalf("expected empty building to be normal")
	}

	statuses, err := repo.ListDeviceStatuses(context.Background())
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	if len(statuses) != 6 || !statuses[0].Online || statuses[1].Online {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
	if statuses[5].EntityID != "f" || !statuses[5].Online {
		t.Fatalf("expected mixed-case status to count as online, got %+v", statuses[5])
	}
}

func TestCriticalDevicesAndSettings(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)
	seed(t, repo,
		&Building{ID: "B", Name: "Main Hall"},
		&Network{ID: "n1", Name: "Floor 1"},
		&BuildingNetwork{BuildingID: "B", NetworkID: "n1"},
		&Device{ID: "d1", Name: "Reception", NetworkID: "n1", Status: StatusOffline, IsCritical: true},
		&Device{ID: "d2", Name: "Lobby", NetworkID: "n1", Status: StatusOnline},
		&Device{ID: "d3", Name: "Security", Status: StatusOnline, IsCritical: true},
		&Recipient{Name: "Ops", Email: "ops@example.com", Active: true},
		&Recipient{Name: "Former", Email: "former@example.com", Active: false},
	)

	devices, err := repo.CriticalDevices(ctx)
	if err != nil {
		t.Fatalf("critical devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 critical devices, got %+v", devices)
	}
	if devices[0].ID != "d1" || devices[0].Online || devices[0].Building != "Main Hall" {
		t.Fatalf("unexpected d1 %+v", devices[0])
	}
	if devices[1].ID != "d3" || !devices[1].Online || devices[1].Building != "" {
		t.Fatalf("unexpected d3 %+v", devices[1])
	}

	thresholds, err := repo.AlertThresholds(ctx)
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	if thresholds.Active {
		t.Fatalf("expected inactive thresholds without a settings row")
	}
	if err := repo.SaveThresholds(ctx, alerting.Thresholds{Lower: 10, Upper: 25, Active: true}); err != nil {
		t.Fatalf("save thresholds: %v", err)
	}
	if err := repo.SaveThresholds(ctx, alerting.Thresholds{Lower: 0, Upper: 40, Active: true}); err != nil {
		t.Fatalf("save thresholds: %v", err)
	}
	thresholds, err = repo.AlertThresholds(ctx)
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	if thresholds.Lower != 0 || thresholds.Upper != 40 || !thresholds.Active {
		t.Fatalf("unexpected thresholds %+v", thresholds)
	}

	recipients, err := repo.Recipients(ctx)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(recipients) != 1 || recipients[0] != "ops@example.com" {
		t.Fatalf("unexpected recipients %v", recipients)
	}
}
