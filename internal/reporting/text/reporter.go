package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	apperrors "github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

const ReporterTypeText = "text"

type Config struct {
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

type Option func(*Reporter)

func WithWriter(w io.Writer) Option {
	return func(r *Reporter) {
		if w != nil {
			r.writer = w
		}
	}
}

func NewReporter(cfg Config, logger ports.Logger, opts ...Option) (*Reporter, error) {
	r := &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if f, ok := r.writer.(*os.File); cfg.NoColor || !ok || !isTerminal(f) {
		color.NoColor = true
	}
	return r, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Reporter) Report(ctx context.Context, report *domain.OperationReport) error {
	if report == nil {
		return apperrors.New(apperrors.CodeInternal, "cannot render a nil report")
	}

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := fmt.Sprintf("Cost Parker: %s", report.Command)
	if report.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(r.writer, bold(title))
	fmt.Fprintln(r.writer, strings.Repeat("=", len(title)))
	if report.Project != "" || report.AccountID != "" || report.RunID != "" {
		fmt.Fprintf(r.writer, "Project: %s  Account: %s  Run: %s\n\n",
			orDash(report.Project), orDash(report.AccountID), orDash(report.RunID))
	}

	if len(report.Results) == 0 {
		fmt.Fprintln(r.writer, "No resources processed.")
		return nil
	}

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Action\tKind\tIdentifier\t$/h Before\t$/h After\tDelta\tDetails")
	fmt.Fprintln(tw, "------\t----\t----------\t----------\t---------\t-----\t-------")

	for _, res := range report.Results {
		if ctx.Err() != nil {
			tw.Flush()
			return ctx.Err()
		}

		var status string
		switch {
		case res.Failed():
			status = magenta("[FAILED]")
		case res.Action == domain.ActionNoOp:
			status = green("[" + res.Action.String() + "]")
		case res.Action == domain.ActionRecreated || res.Action == domain.ActionLimitCleared:
			status = cyan("[" + res.Action.String() + "]")
		default:
			status = yellow("[" + res.Action.String() + "]")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			status, res.Kind, res.Identifier,
			money(res.PreviousHourlyCost), money(res.NewHourlyCost), delta(res.CostDeltaPerHour),
			r.details(res))
		for _, w := range res.Warnings {
			fmt.Fprintf(tw, "\t\t\t\t\t\t%s\n", yellow("warning: "+w))
		}
	}
	tw.Flush()

	summary := reporting.Summarize(report)
	fmt.Fprintln(tw, "\nSummary:")
	fmt.Fprintln(tw, "-------")
	fmt.Fprintf(tw, "Resources:\t%d\n", summary.Resources)
	fmt.Fprintf(tw, "Changed:\t%s\n", yellow(summary.Changed))
	fmt.Fprintf(tw, "Unchanged:\t%s\n", green(summary.Unchanged))
	fmt.Fprintf(tw, "Failed:\t%s\n", red(summary.Failed))
	fmt.Fprintf(tw, "Hourly cost:\t%s\n", money(summary.TotalHourlyCost))
	fmt.Fprintf(tw, "Cost change:\t%s\n", delta(summary.TotalCostDeltaPerHour))
	if summary.Savings.Hourly != 0 {
		fmt.Fprintf(tw, "Savings:\t%s/month  %s/year  (%.1f%%)\n",
			dollars(summary.Savings.Monthly), dollars(summary.Savings.Annual), summary.Savings.Percent)
	}
	tw.Flush()

	if report.DryRun {
		fmt.Fprintln(r.writer, cyan("\nDry run: no changes were made."))
	}
	if report.PartialFailure {
		fmt.Fprintln(r.writer, red("\nSome resources failed; re-run the command to converge the rest."))
	}
	return nil
}

// ReportHistory prints one line per run, newest first.
func (r *Reporter) ReportHistory(ctx context.Context, entries []reporting.HistoryEntry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.writer, "No runs recorded.")
		return nil
	}
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Recorded\tCommand\tStatus\tResources\tChanged\tFailed\tSavings/month\tUser\tRun")
	for _, e := range entries {
		command := string(e.Command)
		if e.DryRun {
			command += " (dry run)"
		}
		var status string
		switch e.Status {
		case reporting.RunFailed:
			status = red(e.Status)
		case reporting.RunPartial:
			status = yellow(e.Status)
		default:
			status = green(e.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			orDash(e.RecordedAt), command, status,
			e.Summary.Resources, e.Summary.Changed, e.Summary.Failed,
			dollars(e.Summary.Savings.Monthly), orDash(userAt(e.User, e.Hostname)), orDash(e.RunID))
		if e.Error != nil {
			fmt.Fprintf(tw, "\t\t%s\n", red(fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)))
		}
	}
	return tw.Flush()
}

// ReportBackups prints the available backups, newest first.
func (r *Reporter) ReportBackups(ctx context.Context, backups []domain.Backup) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(backups) == 0 {
		fmt.Fprintln(r.writer, "No backups found.")
		return nil
	}
	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Stamp\tSize\tLast modified\tKey")
	for _, b := range reporting.NewBackups(backups) {
		fmt.Fprintf(tw, "%s\t%d B\t%s\t%s\n", b.Stamp, b.SizeBytes, orDash(b.LastModified), b.Key)
	}
	return tw.Flush()
}

func userAt(user, host string) string {
	switch {
	case user == "":
		return host
	case host == "":
		return user
	default:
		return user + "@" + host
	}
}

func (r *Reporter) details(res domain.OperationResult) string {
	if res.Failed() {
		code := apperrors.GetCode(res.Err)
		if msg, suggestion, ok := apperrors.GetUserFacingMessage(res.Err); ok {
			if suggestion != "" {
				return fmt.Sprintf("%s: %s (%s)", code, msg, suggestion)
			}
			return fmt.Sprintf("%s: %s", code, msg)
		}
		return fmt.Sprintf("%s: %v", code, res.Err)
	}

	var details string
	switch {
	case res.Previous == nil || res.New == nil:
		details = "-"
	case res.Action == domain.ActionNoOp:
		details = describe(*res.New)
	default:
		details = changes(*res.Previous, *res.New)
	}
	if res.LongRunning {
		details += " (in progress)"
	}
	return details
}

func describe(s domain.ResourceSnapshot) string {
	if !s.Present {
		return "absent"
	}
	if s.Fields == nil {
		return "-"
	}
	parts := make([]string, 0, 3)
	for _, f := range s.Fields.Pairs() {
		parts = append(parts, fmt.Sprintf("%s=%s", f.Name, formatValue(f.Value)))
	}
	return strings.Join(parts, ", ")
}

func changes(prev, next domain.ResourceSnapshot) string {
	if prev.Present != next.Present {
		return fmt.Sprintf("present: %t -> %t", prev.Present, next.Present)
	}
	if prev.Fields == nil || next.Fields == nil {
		return "-"
	}
	after := make(map[string]string)
	for _, f := range next.Fields.Pairs() {
		after[f.Name] = formatValue(f.Value)
	}
	var parts []string
	for _, f := range prev.Fields.Pairs() {
		before := formatValue(f.Value)
		if now, ok := after[f.Name]; ok && now != before {
			parts = append(parts, fmt.Sprintf("%s: %s -> %s", f.Name, before, now))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}

func formatValue(value any) string {
	const maxLen = 100
	var str string
	switch v := value.(type) {
	case []domain.FunctionLimit:
		items := make([]string, 0, len(v))
		for _, fl := range v {
			limit := "unreserved"
			if fl.ConcurrencyLimit != nil {
				limit = fmt.Sprintf("%d", *fl.ConcurrencyLimit)
			}
			items = append(items, fl.Function+"="+limit)
		}
		str = strings.Join(items, " ")
	case []domain.AlarmAction:
		enabled := 0
		for _, a := range v {
			if a.ActionsEnabled {
				enabled++
			}
		}
		str = fmt.Sprintf("%d/%d enabled", enabled, len(v))
	default:
		str = fmt.Sprintf("%v", value)
	}
	if len(str) > maxLen {
		return str[:maxLen-3] + "..."
	}
	return str
}

func money(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}

func dollars(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func delta(v float64) string {
	return fmt.Sprintf("%+.4f", v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
