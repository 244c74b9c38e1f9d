package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	alerting "voip-monitor/internal/alerting/domain"
	"voip-monitor/internal/alerting/notify"
	"voip-monitor/internal/observability/metrics"
)

// SubjectSource supplies device populations for buildings and the critical cohort.
type SubjectSource interface {
	BuildingCounts(ctx context.Context) ([]alerting.BuildingCounts, error)
	CriticalDevices(ctx context.Context) ([]alerting.CriticalDevice, error)
}

// SettingsSource supplies the global alert thresholds.
type SettingsSource interface {
	AlertThresholds(ctx context.Context) (alerting.Thresholds, error)
}

// RecipientSource supplies notification destinations.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]string, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SubjectError records a per-subject failure that did not stop the cycle.
type SubjectError struct {
	Key string
	Err error
}

// CycleReport summarizes one dispatch cycle.
type CycleReport struct {
	ID           string
	At           time.Time
	Skipped      bool
	Thresholds   alerting.Thresholds
	CohortLevel  alerting.Level
	Cohort       alerting.Counts
	Levels       map[alerting.Level]int
	NewBuildings []alerting.BuildingCounts
	NewDevices   []alerting.CriticalDevice
	Cleared      []string
	Marked       []string
	Sent         bool
	Recipients   int
	Errors       []SubjectError
}

// Dispatcher consolidates new critical conditions into one message per cycle.
type Dispatcher struct {
	subjects   SubjectSource
	settings   SettingsSource
	recipients RecipientSource
	tracker    alerting.Tracker
	channel    notify.Channel
	template   *notify.Template
	ttl        time.Duration
	location   *time.Location
	logger     *log.Logger
	clock      Clock
	mu         sync.Mutex
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithMarkTTL sets how long a sent alert stays marked.
func WithMarkTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithTemplate overrides the default message template.
func WithTemplate(tpl *notify.Template) Option {
	return func(d *Dispatcher) {
		if tpl != nil {
			d.template = tpl
		}
	}
}

// WithLocation sets the zone used for timestamps in messages.
func WithLocation(loc *time.Location) Option {
	return func(d *Dispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(subjects SubjectSource, settings SettingsSource, recipients RecipientSource, tracker alerting.Tracker, channel notify.Channel, opts ...Option) (*Dispatcher, error) {
	if subjects == nil {
		return nil, errors.New("dispatcher: nil subject source")
	}
	if settings == nil {
		return nil, errors.New("dispatcher: nil settings source")
	}
	if recipients == nil {
		return nil, errors.New("dispatcher: nil recipient source")
	}
	if tracker == nil {
		return nil, errors.New("dispatcher: nil tracker")
	}
	if channel == nil {
		return nil, errors.New("dispatcher: nil channel")
	}
	d := &Dispatcher{
		subjects:   subjects,
		settings:   settings,
		recipients: recipients,
		tracker:    tracker,
		channel:    channel,
		ttl:        alerting.DefaultMarkTTL,
		location:   time.UTC,
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.template == nil {
		tpl, err := notify.NewTemplate("", "")
		if err != nil {
			return nil, err
		}
		d.template = tpl
	}
	return d, nil
}

// Tracker returns the mark store used by the dispatcher.
func (d *Dispatcher) Tracker() alerting.Tracker {
	if d == nil {
		return nil
	}
	return d.tracker
}

// RunCycle evaluates every subject, sends one message for new critical
// conditions and marks them. Cycles never overlap.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	if d == nil {
		return CycleReport{}, errors.New("dispatcher: nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if now.IsZero() {
		now = d.clock.Now()
	}
	started := time.Now()
	report := CycleReport{
		ID:     uuid.NewString(),
		At:     now.In(d.location),
		Levels: make(map[alerting.Level]int),
	}
	report, err := d.runCycle(ctx, report)
	metrics.ObserveCycle(cycleResult(report, err), time.Since(started))
	return report, err
}

func (d *Dispatcher) runCycle(ctx context.Context, report CycleReport) (CycleReport, error) {
	thresholds, err := d.settings.AlertThresholds(ctx)
	if err != nil {
		return report, fmt.Errorf("dispatcher: load thresholds: %w", err)
	}
	report.Thresholds = thresholds
	if !thresholds.Active {
		report.Skipped = true
		d.logf("dispatch cycle %s skipped: alerts inactive", report.ID)
		return report, nil
	}
	if err := thresholds.Validate(); err != nil {
		d.logf("dispatch cycle %s error: %v", report.ID, err)
		return report, err
	}

	buildings, err := d.subjects.BuildingCounts(ctx)
	if err != nil {
		return report, fmt.Errorf("dispatcher: load buildings: %w", err)
	}
	devices, err := d.subjects.CriticalDevices(ctx)
	if err != nil {
		return report, fmt.Errorf("dispatcher: load critical devices: %w", err)
	}

	d.evaluateBuildings(ctx, &report, buildings, thresholds)
	d.evaluateDevices(ctx, &report, devices, thresholds)
	metrics.AddMarksCleared("recovered", len(report.Cleared))
	recovered := len(report.Cleared)
	d.clearVanished(ctx, &report, buildings, devices)
	metrics.AddMarksCleared("vanished", len(report.Cleared)-recovered)

	if len(report.NewBuildings) == 0 && len(report.NewDevices) == 0 {
		return report, subjectErrors(report)
	}

	recipients, err := d.recipients.Recipients(ctx)
	if err != nil {
		d.logf("dispatch cycle %s error: recipients: %v", report.ID, err)
		return report, fmt.Errorf("%w: recipients: %w", alerting.ErrDeliveryFailed, err)
	}
	if len(recipients) == 0 {
		d.logf("dispatch cycle %s error: no recipients", report.ID)
		return report, fmt.Errorf("%w: %w", alerting.ErrDeliveryFailed, alerting.ErrNoRecipients)
	}
	report.Recipients = len(recipients)

	msg, err := d.compose(report, recipients)
	if err != nil {
		return report, fmt.Errorf("dispatcher: render: %w", err)
	}
	if err := d.channel.Send(ctx, msg); err != nil {
		d.logf("dispatch cycle %s delivery error: %v", report.ID, err)
		return report, fmt.Errorf("%w: %w", alerting.ErrDeliveryFailed, err)
	}
	report.Sent = true
	metrics.AddNotificationsSent(alerting.KindBuilding, len(report.NewBuildings))
	metrics.AddNotificationsSent(alerting.KindDevice, len(report.NewDevices))

	for _, building := range report.NewBuildings {
		d.mark(ctx, &report, alerting.BuildingKey(building.ID))
	}
	for _, device := range report.NewDevices {
		d.mark(ctx, &report, alerting.DeviceKey(device.ID))
	}
	d.logf("dispatch cycle %s sent: buildings=%d devices=%d recipients=%d",
		report.ID, len(report.NewBuildings), len(report.NewDevices), report.Recipients)
	return report, subjectErrors(report)
}

func (d *Dispatcher) evaluateBuildings(ctx context.Context, report *CycleReport, buildings []alerting.BuildingCounts, thresholds alerting.Thresholds) {
	levels := make(map[string]int, len(alerting.Levels))
	for _, level := range alerting.Levels {
		levels[string(level)] = 0
	}
	for _, building := range buildings {
		if building.ID == "" {
			continue
		}
		level := alerting.Evaluate(building.Counts, thresholds)
		report.Levels[level]++
		levels[string(level)]++
		key := alerting.BuildingKey(building.ID)
		marked, err := d.tracker.IsMarked(ctx, key)
		if err != nil {
			d.subjectError(report, key, err)
			continue
		}
		switch {
		case level == alerting.LevelCritical && !marked:
			report.NewBuildings = append(report.NewBuildings, building)
		case level != alerting.LevelCritical && marked:
			d.clear(ctx, report, key, "recovered")
		}
	}
	metrics.SetSubjectLevels(alerting.KindBuilding, levels)
}

func (d *Dispatcher) evaluateDevices(ctx context.Context, report *CycleReport, devices []alerting.CriticalDevice, thresholds alerting.Thresholds) {
	report.Cohort = alerting.CohortCounts(devices)
	report.CohortLevel = alerting.Evaluate(report.Cohort, thresholds)
	for _, device := range devices {
		if device.ID == "" {
			continue
		}
		key := alerting.DeviceKey(device.ID)
		marked, err := d.tracker.IsMarked(ctx, key)
		if err != nil {
			d.subjectError(report, key, err)
			continue
		}
		switch {
		case !device.Online && !marked:
			report.NewDevices = append(report.NewDevices, device)
		case device.Online && marked:
			d.clear(ctx, report, key, "recovered")
		}
	}
	cohort := make(map[string]int, len(alerting.Levels))
	for _, level := range alerting.Levels {
		cohort[string(level)] = 0
	}
	cohort[string(report.CohortLevel)] = 1
	metrics.SetSubjectLevels("critical_cohort", cohort)
}

// clearVanished drops marks whose building or device is no longer part of
// the monitored population, so a subject that returns starts fresh.
func (d *Dispatcher) clearVanished(ctx context.Context, report *CycleReport, buildings []alerting.BuildingCounts, devices []alerting.CriticalDevice) {
	marks, err := d.tracker.List(ctx)
	if err != nil {
		d.subjectError(report, "marks", err)
		return
	}
	present := make(map[string]struct{}, len(buildings)+len(devices))
	for _, building := range buildings {
		present[alerting.BuildingKey(building.ID)] = struct{}{}
	}
	for _, device := range devices {
		present[alerting.DeviceKey(device.ID)] = struct{}{}
	}
	for _, mark := range marks {
		if _, _, ok := alerting.ParseKey(mark.Key); !ok {
			continue
		}
		if _, ok := present[mark.Key]; ok {
			continue
		}
		d.clear(ctx, report, mark.Key, "vanished")
	}
}

func (d *Dispatcher) clear(ctx context.Context, report *CycleReport, key, reason string) {
	if err := d.tracker.Clear(ctx, key); err != nil {
		d.subjectError(report, key, err)
		return
	}
	report.Cleared = append(report.Cleared, key)
	d.logf("notification mark cleared: %s %s", key, reason)
}

func (d *Dispatcher) mark(ctx context.Context, report *CycleReport, key string) {
	if err := d.tracker.Mark(ctx, key, d.ttl); err != nil {
		d.subjectError(report, key, err)
		return
	}
	report.Marked = append(report.Marked, key)
}

func (d *Dispatcher) subjectError(report *CycleReport, key string, err error) {
	err = fmt.Errorf("%w: %w", alerting.ErrStorageUnavailable, err)
	report.Errors = append(report.Errors, SubjectError{Key: key, Err: err})
	d.logf("dispatch cycle %s subject error: key=%s err=%v", report.ID, key, err)
}

func (d *Dispatcher) compose(report CycleReport, recipients []string) (notify.Message, error) {
	data := notify.TemplateData{
		CycleID:          report.ID,
		GeneratedAt:      report.At.Format(time.RFC3339),
		Lower:            formatPercent(report.Thresholds.Lower),
		Upper:            formatPercent(report.Thresholds.Upper),
		CohortLevel:      string(report.CohortLevel),
		CohortOffline:    report.Cohort.Offline,
		CohortTotal:      report.Cohort.Total,
		CohortPercentage: formatPercent(report.Cohort.Percentage()),
		NewCount:         len(report.NewBuildings) + len(report.NewDevices),
	}
	for _, building := range report.NewBuildings {
		name := building.Name
		if name == "" {
			name = building.ID
		}
		data.Buildings = append(data.Buildings, notify.BuildingLine{
			ID:         building.ID,
			Name:       name,
			Offline:    building.Counts.Offline,
			Total:      building.Counts.Total,
			Percentage: formatPercent(building.Counts.Percentage()),
		})
	}
	for _, device := range report.NewDevices {
		name := device.Name
		if name == "" {
			name = device.ID
		}
		data.Devices = append(data.Devices, notify.DeviceLine{ID: device.ID, Name: name, Building: device.Building})
	}
	subject, body, err := d.template.Render(data)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.Message{ID: report.ID, Subject: subject, Body: body, Recipients: recipients}, nil
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d != nil && d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

func subjectErrors(report CycleReport) error {
	if len(report.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(report.Errors))
	for _, se := range report.Errors {
		errs = append(errs, fmt.Errorf("subject %s: %w", se.Key, se.Err))
	}
	return errors.Join(errs...)
}

func cycleResult(report CycleReport, err error) string {
	switch {
	case report.Skipped:
		return metrics.ResultSkipped
	case err != nil && report.Sent:
		return metrics.ResultPartial
	case err != nil:
		return metrics.ResultError
	default:
		return metrics.ResultSuccess
	}
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
