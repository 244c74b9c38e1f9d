package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	activity "voip-monitor/internal/activity/domain"
)

func sampleRecord() *activity.Record {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	record := activity.NewRecord("phone-1", activity.DayYesterday, day, day)
	record.Samples[10] = activity.SampleOnline
	record.Samples[287] = activity.SampleOnline
	return record
}

func TestBuildActivityXLSX(t *testing.T) {
	data, err := BuildActivityXLSX(sampleRecord())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	device, _ := f.GetCellValue("summary", "B3")
	day, _ := f.GetCellValue("summary", "B4")
	online, _ := f.GetCellValue("summary", "B6")
	if device != "phone-1" || day != "yesterday" || online != "2" {
		t.Fatalf("unexpected summary %s %s %s", device, day, online)
	}
	start, _ := f.GetCellValue("slots", "B12")
	value, _ := f.GetCellValue("slots", "C12")
	if start != "00:50" || value != "1" {
		t.Fatalf("unexpected slot 10 row %s %s", start, value)
	}
	last, _ := f.GetCellValue("slots", "B289")
	if last != "23:55" {
		t.Fatalf("unexpected last slot label %s", last)
	}
}

func TestBuildActivityPDF(t *testing.T) {
	data, err := BuildActivityPDF(sampleRecord())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
	if _, err := BuildActivityPDF(nil); err == nil {
		t.Fatalf("expected error for nil record")
	}
}

func TestTimeline(t *testing.T) {
	line := Timeline(sampleRecord())
	if len(line) != activity.SlotsPerDay || line[10] != '#' || strings.Count(line, "#") != 2 {
		t.Fatalf("unexpected timeline %q", line)
	}
}
