package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	activity "voip-monitor/internal/activity/domain"
)

const slotsPerHour = 60 / activity.DefaultGranularityMinutes

// BuildActivityXLSX renders one activity buffer as a workbook.
func BuildActivityXLSX(record *activity.Record) ([]byte, error) {
	if record == nil {
		return nil, errors.New("report: nil record")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	slotsSheet := "slots"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(slotsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Device Activity")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", record.EntityID)
	_ = f.SetCellValue(summarySheet, "A4", "Day")
	_ = f.SetCellValue(summarySheet, "B4", record.DaySlot.String())
	_ = f.SetCellValue(summarySheet, "A5", "Date")
	_ = f.SetCellValue(summarySheet, "B5", record.ActivityDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A6", "Online Slots")
	_ = f.SetCellValue(summarySheet, "B6", record.OnlineSlots())
	_ = f.SetCellValue(summarySheet, "A7", "Availability (%)")
	_ = f.SetCellValue(summarySheet, "B7", roundPercent(record.Availability(0)))
	_ = f.SetCellValue(summarySheet, "A8", "Updated")
	_ = f.SetCellValue(summarySheet, "B8", record.UpdatedAt.UTC().Format(time.RFC3339))

	_ = f.SetCellValue(slotsSheet, "A1", "Slot")
	_ = f.SetCellValue(slotsSheet, "B1", "Start")
	_ = f.SetCellValue(slotsSheet, "C1", "Online")
	for i, sample := range record.Samples {
		row := i + 2
		_ = f.SetCellValue(slotsSheet, fmt.Sprintf("A%d", row), i)
		_ = f.SetCellValue(slotsSheet, fmt.Sprintf("B%d", row), SlotLabel(i))
		_ = f.SetCellValue(slotsSheet, fmt.Sprintf("C%d", row), int(sample))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildActivityPDF renders one activity buffer as an hour-by-slot grid.
func BuildActivityPDF(record *activity.Record) ([]byte, error) {
	if record == nil {
		return nil, errors.New("report: nil record")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Activity")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", record.EntityID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s (%s)", record.ActivityDate.Format("2006-01-02"), record.DaySlot))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Availability: %.2f%% (%d/%d slots online)",
		roundPercent(record.Availability(0)), record.OnlineSlots(), len(record.Samples)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(16, 5, "Hour", "1", 0, "C", false, 0, "")
	for m := 0; m < slotsPerHour; m++ {
		pdf.CellFormat(13, 5, fmt.Sprintf(":%02d", m*activity.DefaultGranularityMinutes), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for hour := 0; hour < 24; hour++ {
		pdf.CellFormat(16, 5, fmt.Sprintf("%02d:00", hour), "1", 0, "C", false, 0, "")
		for m := 0; m < slotsPerHour; m++ {
			slot := hour*slotsPerHour + m
			mark := ""
			fill := false
			if slot < len(record.Samples) && record.Samples[slot] == activity.SampleOnline {
				mark = "on"
				fill = true
				pdf.SetFillColor(180, 230, 180)
			}
			pdf.CellFormat(13, 5, mark, "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SlotLabel formats the start of a slot as HH:MM.
func SlotLabel(slot int) string {
	start := activity.SlotStart(slot)
	return fmt.Sprintf("%02d:%02d", int(start.Hours()), int(start.Minutes())%60)
}

// Timeline renders samples as a compact string, one rune per slot.
func Timeline(record *activity.Record) string {
	if record == nil {
		return ""
	}
	var b strings.Builder
	b.Grow(len(record.Samples))
	for _, sample := range record.Samples {
		if sample == activity.SampleOnline {
			b.WriteByte('#')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func roundPercent(ratio float64) float64 {
	return float64(int(ratio*10000+0.5)) / 100
}
