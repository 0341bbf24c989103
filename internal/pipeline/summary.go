package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ginjaninja78/docbatch/internal/generator"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// Summary collects what a run did.
type Summary struct {
	RunID  string
	DryRun bool

	// Stages holds counts for every stage that ran, in order.
	Stages []types.StageStats

	// Failures are the per-file failures across stages.
	Failures []types.FileResult

	// Generated are the documents written (or planned in dry-run mode).
	Generated []generator.Output

	MissingCompanies []string
	StampDir         string

	Duration time.Duration
}

func (s *Summary) add(stats types.StageStats, results []types.FileResult) {
	s.Stages = append(s.Stages, stats)
	for _, r := range results {
		if !r.Success && !r.Skipped {
			s.Failures = append(s.Failures, r)
		}
	}
}

// FailedFiles is the number of per-file failures across all stages.
func (s *Summary) FailedFiles() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Failed
	}
	return n
}

// Entries converts the stage counts for the summary log file.
func (s *Summary) Entries() []utils.SummaryEntry {
	entries := make([]utils.SummaryEntry, 0, len(s.Stages))
	for _, st := range s.Stages {
		entries = append(entries, utils.SummaryEntry{
			Stage:     string(st.Stage),
			Total:     st.Total,
			Succeeded: st.Succeeded,
			Failed:    st.Failed,
			Skipped:   st.Skipped,
			Duration:  st.Duration,
		})
	}
	return entries
}

// Notes are the human-readable follow-ups: failed files and missing stamps.
func (s *Summary) Notes() []string {
	var notes []string
	for _, f := range s.Failures {
		notes = append(notes, fmt.Sprintf("failed: %s: %v", filepath.Base(f.FilePath), f.Error))
	}
	if len(s.MissingCompanies) > 0 {
		notes = append(notes, "companies without a stamp image:")
		for _, c := range s.MissingCompanies {
			notes = append(notes, "  - "+c)
		}
		notes = append(notes, "place the missing stamps in: "+s.StampDir)
	}
	return notes
}

// Render writes the summary table and notes to w.
func (s *Summary) Render(w io.Writer, colorize bool) {
	rows := make([][]string, 0, len(s.Stages))
	for _, st := range s.Stages {
		failed := strconv.Itoa(st.Failed)
		if colorize && st.Failed > 0 {
			failed = text.FgRed.Sprint(failed)
		}
		skipped := strconv.Itoa(st.Skipped)
		if colorize && st.Skipped > 0 {
			skipped = text.FgYellow.Sprint(skipped)
		}
		rows = append(rows, []string{
			string(st.Stage),
			strconv.Itoa(st.Total),
			strconv.Itoa(st.Succeeded),
			failed,
			skipped,
			st.Duration.Round(time.Millisecond).String(),
		})
	}

	title := "Run " + s.RunID
	if s.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, renderTable(
		[]string{"Stage", "Total", "Succeeded", "Failed", "Skipped", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if notes := s.Notes(); len(notes) > 0 {
		fmt.Fprintln(w, strings.Join(notes, "\n"))
	}
}

// RenderPlan writes the batch plan produced by Pipeline.Plan.
func RenderPlan(w io.Writer, outputs []generator.Output) {
	rows := make([][]string, 0, len(outputs))
	for i, out := range outputs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			out.Company,
			strconv.Itoa(len(out.Batch)),
			out.IssueDate.Format("2006-01-02"),
			filepath.Base(out.Path),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Company", "Numbers", "Issued", "File"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
