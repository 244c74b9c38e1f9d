package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	activity "voip-monitor/internal/activity/domain"
	alertapp "voip-monitor/internal/alerting/application"
	alerting "voip-monitor/internal/alerting/domain"
	"voip-monitor/internal/auth"
	"voip-monitor/internal/config"
)

const commandTimeout = 2 * time.Minute

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record one activity sample for every device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.ActivityStore == config.StoreMemory {
				a.logger.Printf("activity_store=memory: samples are discarded on exit")
			}
			report, err := a.activity.RecordTick(ctx, a.activity.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "slot %d of %s: %d recorded, %d failed\n",
				report.Slot, report.Date.Format("2006-01-02"), report.Recorded, len(report.Failures))
			return err
		},
	}
}

func newRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate today's activity buffers into yesterday",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.activity.RotateDay(ctx, a.activity.Now()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "activity buffers rotated")
			return nil
		},
	}
}

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run one notification cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.dispatcher.RunCycle(ctx, time.Time{})
			printCycle(cmd, report)
			return err
		},
	}
}

func printCycle(cmd *cobra.Command, report alertapp.CycleReport) {
	out := cmd.OutOrStdout()
	if report.Skipped {
		fmt.Fprintf(out, "cycle %s skipped: alerts inactive\n", report.ID)
		return
	}
	fmt.Fprintf(out, "cycle %s: cohort %s (%d/%d offline)\n",
		report.ID, report.CohortLevel, report.Cohort.Offline, report.Cohort.Total)
	fmt.Fprintf(out, "  new buildings: %d, new devices: %d, cleared: %d\n",
		len(report.NewBuildings), len(report.NewDevices), len(report.Cleared))
	if report.Sent {
		fmt.Fprintf(out, "  sent to %d recipient(s), marked %d subject(s)\n", report.Recipients, len(report.Marked))
	}
	for _, subjectErr := range report.Errors {
		fmt.Fprintf(out, "  %s: %v\n", subjectErr.Key, subjectErr.Err)
	}
}

func newActivityCmd() *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "activity <entity>",
		Short: "Show the activity buffer of one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			record, err := a.activity.GetActivity(ctx, args[0], activity.DaySlot(day))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s): %d/%d slots online, %.1f%% available, updated %s\n",
				record.EntityID, record.DaySlot, record.ActivityDate.Format("2006-01-02"),
				record.OnlineSlots(), activity.SlotsPerDay, record.Availability(0)*100,
				humanize.Time(record.UpdatedAt))
			return nil
		},
	}
	cmd.Flags().IntVar(&day, "day", int(activity.DayToday), "1 = today, 2 = yesterday")
	return cmd
}

func newMarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "marks",
		Short: "List active notification marks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			marks, err := a.tracker.List(ctx)
			if err != nil {
				return err
			}
			printMarks(cmd, marks)
			return nil
		},
	}
}

func printMarks(cmd *cobra.Command, marks []alerting.Mark) {
	out := cmd.OutOrStdout()
	if len(marks) == 0 {
		fmt.Fprintln(out, "no active notification marks")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tMARKED\tEXPIRES")
	for _, mark := range marks {
		fmt.Fprintf(w, "%s\t%s\t%s\n", mark.Key, humanize.Time(mark.MarkedAt), humanize.Time(mark.ExpiresAt))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "%s mark(s)\n", humanize.Comma(int64(len(marks))))
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [key]",
		Short: "Clear one notification mark, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if _, _, ok := alerting.ParseKey(args[0]); !ok {
					return fmt.Errorf("reset: invalid key %q, want building:<id> or device:<id>", args[0])
				}
				if err := a.tracker.Clear(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared %s\n", args[0])
				return nil
			}
			cleared, err := a.tracker.ResetAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "cleared %s active mark(s)\n", humanize.Comma(int64(cleared)))
			return nil
		},
	}
}

func newThresholdsCmd() *cobra.Command {
	var (
		lower  float64
		upper  float64
		active bool
	)
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Show or update the alert thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("lower") || cmd.Flags().Changed("upper") || cmd.Flags().Changed("active") {
				current, err := a.inventory.AlertThresholds(ctx)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("lower") {
					current.Lower = lower
				}
				if cmd.Flags().Changed("upper") {
					current.Upper = upper
				}
				if cmd.Flags().Changed("active") {
					current.Active = active
				}
				if err := a.inventory.SaveThresholds(ctx, current); err != nil {
					return err
				}
			}
			thresholds, err := a.inventory.AlertThresholds(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lower=%s%% upper=%s%% active=%t\n",
				strconv.FormatFloat(thresholds.Lower, 'f', -1, 64),
				strconv.FormatFloat(thresholds.Upper, 'f', -1, 64),
				thresholds.Active)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lower, "lower", 0, "warning threshold in percent")
	cmd.Flags().Float64Var(&upper, "upper", 0, "critical threshold in percent")
	cmd.Flags().BoolVar(&active, "active", false, "enable alert notifications")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("token: auth.jwt_secret is not configured")
			}
			normalized, ok := auth.NormalizeRole(role)
			if !ok {
				return auth.ErrInvalidRole
			}
			token, err := auth.IssueToken([]byte(cfg.Auth.JWTSecret), subject, normalized, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
