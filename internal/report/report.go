// Package report renders validation reports and processing summaries for
// the command line as tables, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

// Format selects the output encoding
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (expected table, json or yaml)", s)
}

// maxCellLen keeps long messages from blowing up table width
const maxCellLen = 80

var severityColors = map[models.Severity]text.Colors{
	models.SeverityError:   {text.FgHiRed, text.Bold},
	models.SeverityWarning: {text.FgHiYellow},
	models.SeverityInfo:    {text.FgHiCyan},
}

// Encode writes v as indented JSON or YAML
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}

func newTable(w io.Writer, title string, color bool) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	if !color {
		style.Color = table.ColorOptions{}
		style.Title.Colors = nil
	} else {
		style.Color.Header = text.Colors{text.FgHiBlue, text.Bold}
		style.Title.Colors = text.Colors{text.FgHiCyan, text.Bold}
	}
	t.SetStyle(style)
	return t
}

// IssueTable renders every issue of a report, grouped by severity
func IssueTable(w io.Writer, rep models.Report, color bool) {
	status := "VALID"
	if !rep.Valid {
		status = "INVALID"
	}
	title := status
	if rep.Method != "" {
		title = fmt.Sprintf("%s (extracted via %s)", status, rep.Method)
	}

	t := newTable(w, title, color)
	t.AppendHeader(table.Row{"Severity", "Code", "Location", "Message", "Suggestion"})

	groups := [][]models.Issue{rep.Errors, rep.Warnings, rep.Info}
	for _, issues := range groups {
		for _, issue := range issues {
			sev := string(issue.Severity)
			if color {
				sev = severityColors[issue.Severity].Sprint(sev)
			}
			loc := ""
			if issue.Location != nil {
				loc = fmt.Sprintf("%d:%d", issue.Location.Line, issue.Location.Column)
			}
			t.AppendRow(table.Row{
				sev,
				issue.Code,
				loc,
				util.TruncateString(issue.Message, maxCellLen),
				util.TruncateString(issue.Suggestion, maxCellLen),
			})
		}
	}
	if len(rep.Errors)+len(rep.Warnings)+len(rep.Info) == 0 {
		t.AppendRow(table.Row{"", "", "", "no issues", ""})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d errors, %d warnings, %d info",
		len(rep.Errors), len(rep.Warnings), len(rep.Info)), ""})
	t.Render()

	// Context snippets do not fit in a cell
	for _, issue := range rep.Errors {
		if issue.Context != "" && issue.Location != nil {
			fmt.Fprintf(w, "\n%s at %s:\n%s\n", issue.Code, issue.Location, issue.Context)
		}
	}
}

// SummaryTable renders a ProcessingSummary
func SummaryTable(w io.Writer, title string, s models.ProcessingSummary, color bool) {
	t := newTable(w, title, color)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total records", s.TotalRecords},
		{"With missing fields", s.RecordsWithMissing},
		{"With type errors", s.RecordsWithTypeErrors},
		{"With conversions", s.RecordsWithConversion},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate)},
		{"Clean rate", fmt.Sprintf("%.1f%%", s.CleanRate)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

// LogTable lists the records that needed repair
func LogTable(w io.Writer, logs []models.ProcessingLog, color bool) {
	t := newTable(w, "Repairs", color)
	t.AppendHeader(table.Row{"Record", "Missing", "Type errors", "Converted"})
	repaired := 0
	for _, log := range logs {
		if !log.Repaired() {
			continue
		}
		repaired++
		t.AppendRow(table.Row{
			log.RecordID,
			strings.Join(log.MissingFields, ", "),
			util.TruncateString(strings.Join(log.TypeErrors, "; "), maxCellLen),
			strings.Join(log.ConvertedFields, ", "),
		})
	}
	if repaired == 0 {
		t.AppendRow(table.Row{"", "no repairs", "", ""})
	}
	t.Render()
}

// MergeSummaries adds up per-response summaries into one batch summary
func MergeSummaries(summaries []models.ProcessingSummary) models.ProcessingSummary {
	var total models.ProcessingSummary
	clean := 0.0
	for _, s := range summaries {
		total.TotalRecords += s.TotalRecords
		total.RecordsWithMissing += s.RecordsWithMissing
		total.RecordsWithTypeErrors += s.RecordsWithTypeErrors
		total.RecordsWithConversion += s.RecordsWithConversion
		clean += s.CleanRate / 100 * float64(s.TotalRecords)
	}
	total.SuccessRate = 100
	if total.TotalRecords > 0 {
		total.CleanRate = clean / float64(total.TotalRecords) * 100
	}
	return total
}
