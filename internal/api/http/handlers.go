package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	activity "voip-monitor/internal/activity/domain"
	alertapp "voip-monitor/internal/alerting/application"
	alerting "voip-monitor/internal/alerting/domain"
	"voip-monitor/internal/audit"
	"voip-monitor/internal/auth"
	"voip-monitor/internal/report"
)

const timeLayout = time.RFC3339

// ActivityReader loads activity buffers.
type ActivityReader interface {
	GetActivity(ctx context.Context, entityID string, daySlot activity.DaySlot) (*activity.Record, error)
}

// CycleRunner triggers a dispatch cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (alertapp.CycleReport, error)
}

type errorBody struct {
	Error string `json:"error"`
}

type activityBody struct {
	EntityID     string            `json:"entity_id"`
	DaySlot      activity.DaySlot  `json:"day_slot"`
	Day          string            `json:"day"`
	ActivityDate string            `json:"activity_date"`
	Samples      []activity.Sample `json:"samples"`
	OnlineSlots  int               `json:"online_slots"`
	Availability float64           `json:"availability"`
	UpdatedAt    string            `json:"updated_at"`
}

// ActivityHandler serves activity buffers and their exports.
type ActivityHandler struct {
	reader ActivityReader
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(reader ActivityReader) (*ActivityHandler, error) {
	if reader == nil {
		return nil, errors.New("activity handler: nil reader")
	}
	return &ActivityHandler{reader: reader}, nil
}

// Get handles GET /api/v1/activity/{entity}?day=1|2.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, activityBody{
		EntityID:     record.EntityID,
		DaySlot:      record.DaySlot,
		Day:          record.DaySlot.String(),
		ActivityDate: record.ActivityDate.Format("2006-01-02"),
		Samples:      record.Samples,
		OnlineSlots:  record.OnlineSlots(),
		Availability: record.Availability(0),
		UpdatedAt:    record.UpdatedAt.UTC().Format(timeLayout),
	})
}

// Export handles GET /api/v1/activity/{entity}/export.{format}.
func (h *ActivityHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	if format != "xlsx" && format != "pdf" {
		writeError(w, http.StatusBadRequest, "format must be xlsx or pdf")
		return
	}
	record, ok := h.load(w, r)
	if !ok {
		return
	}
	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "xlsx":
		data, err = report.BuildActivityXLSX(record)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = report.BuildActivityPDF(record)
		contentType = "application/pdf"
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	filename := record.EntityID + "-" + record.ActivityDate.Format("2006-01-02") + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ActivityHandler) load(w http.ResponseWriter, r *http.Request) (*activity.Record, bool) {
	entityID := mux.Vars(r)["entity"]
	daySlot, err := parseDaySlot(r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	record, err := h.reader.GetActivity(r.Context(), entityID, daySlot)
	if err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no data available")
			return nil, false
		}
		if errors.Is(err, activity.ErrEmptyEntityID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "activity query error")
		return nil, false
	}
	return record, true
}

// MarksHandler serves notification mark administration.
type MarksHandler struct {
	tracker     alerting.Tracker
	auditLogger audit.Logger
}

// NewMarksHandler constructs a MarksHandler. auditLogger may be nil.
func NewMarksHandler(tracker alerting.Tracker, auditLogger audit.Logger) (*MarksHandler, error) {
	if tracker == nil {
		return nil, errors.New("marks handler: nil tracker")
	}
	return &MarksHandler{tracker: tracker, auditLogger: auditLogger}, nil
}

// List handles GET /api/v1/notifications/marks.
func (h *MarksHandler) List(w http.ResponseWriter, r *http.Request) {
	marks, err := h.tracker.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list marks error")
		return
	}
	if marks == nil {
		marks = []alerting.Mark{}
	}
	writeJSON(w, http.StatusOK, marks)
}

// Get handles GET /api/v1/notifications/marks/{key}.
func (h *MarksHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := markKey(w, r)
	if !ok {
		return
	}
	mark, err := h.tracker.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, alerting.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not marked")
			return
		}
		writeError(w, http.StatusInternalServerError, "get mark error")
		return
	}
	writeJSON(w, http.StatusOK, mark)
}

// Clear handles DELETE /api/v1/notifications/marks/{key}.
func (h *MarksHandler) Clear(w http.ResponseWriter, r *http.Request) {
	key, ok := markKey(w, r)
	if !ok {
		return
	}
	if err := h.tracker.Clear(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "clear mark error")
		return
	}
	logAudit(h.auditLogger, r, audit.ActionMarkClear, audit.ResourceMark, key, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /api/v1/notifications/reset.
func (h *MarksHandler) Reset(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.tracker.ResetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reset marks error")
		return
	}
	logAudit(h.auditLogger, r, audit.ActionMarksReset, audit.ResourceMark, "*", map[string]any{"cleared": cleared})
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

type cycleBody struct {
	ID           string   `json:"id"`
	At           string   `json:"at"`
	Skipped      bool     `json:"skipped"`
	Sent         bool     `json:"sent"`
	CohortLevel  string   `json:"cohort_level,omitempty"`
	NewBuildings []string `json:"new_buildings"`
	NewDevices   []string `json:"new_devices"`
	Cleared      []string `json:"cleared"`
	Marked       []string `json:"marked"`
	Errors       []string `json:"errors,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// DispatchHandler triggers dispatch cycles on demand.
type DispatchHandler struct {
	runner      CycleRunner
	auditLogger audit.Logger
}

// NewDispatchHandler constructs a DispatchHandler. auditLogger may be nil.
func NewDispatchHandler(runner CycleRunner, auditLogger audit.Logger) (*DispatchHandler, error) {
	if runner == nil {
		return nil, errors.New("dispatch handler: nil runner")
	}
	return &DispatchHandler{runner: runner, auditLogger: auditLogger}, nil
}

// Run handles POST /api/v1/notifications/run.
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunCycle(r.Context(), time.Now())
	body := cycleBody{
		ID:           result.ID,
		At:           result.At.UTC().Format(timeLayout),
		Skipped:      result.Skipped,
		Sent:         result.Sent,
		CohortLevel:  string(result.CohortLevel),
		NewBuildings: make([]string, 0, len(result.NewBuildings)),
		NewDevices:   make([]string, 0, len(result.NewDevices)),
		Cleared:      nonNil(result.Cleared),
		Marked:       nonNil(result.Marked),
	}
	for _, building := range result.NewBuildings {
		body.NewBuildings = append(body.NewBuildings, building.ID)
	}
	for _, device := range result.NewDevices {
		body.NewDevices = append(body.NewDevices, device.ID)
	}
	for _, se := range result.Errors {
		body.Errors = append(body.Errors, se.Key+": "+se.Err.Error())
	}
	logAudit(h.auditLogger, r, audit.ActionDispatchRun, audit.ResourceDispatchRun, result.ID, map[string]any{
		"sent":   result.Sent,
		"marked": len(result.Marked),
		"failed": err != nil,
	})
	status := http.StatusOK
	if err != nil {
		body.Error = err.Error()
		switch {
		case errors.Is(err, alerting.ErrDeliveryFailed):
			status = http.StatusBadGateway
		case errors.Is(err, alerting.ErrInvalidThresholds):
			status = http.StatusConflict
		case len(result.Errors) > 0:
			status = http.StatusMultiStatus
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, body)
}

func logAudit(logger audit.Logger, r *http.Request, action, resourceType, resourceID string, metadata map[string]any) {
	if logger == nil {
		return
	}
	var meta []byte
	if metadata != nil {
		meta, _ = json.Marshal(metadata)
	}
	_ = logger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func markKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := mux.Vars(r)["key"]
	if _, _, ok := alerting.ParseKey(key); !ok {
		writeError(w, http.StatusBadRequest, "key must be building:<id> or device:<id>")
		return "", false
	}
	return key, true
}

func parseDaySlot(value string) (activity.DaySlot, error) {
	if value == "" {
		return activity.DayToday, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || !activity.DaySlot(parsed).Valid() {
		return 0, errors.New("day must be 1 (today) or 2 (yesterday)")
	}
	return activity.DaySlot(parsed), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
