// Package report exports a run's result as an XLSX workbook and reads the
// action item sheet back.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-router-go/internal/aggregator"
	"meeting-router-go/internal/types"
)

const (
	ActionsSheet = "Action Items"
	RisksSheet   = "Risk Points"
	OwnersSheet  = "Owners"
)

var (
	actionHeader = []any{"Owner", "Task", "Context", "Status", "Reference", "Attempts", "Error"}
	riskHeader   = []any{"Sentiment Score", "Decision", "Speaker", "Context"}
	ownerHeader  = []any{"Owner", "Items", "Created", "Failed"}
)

// ActionRow is one row of the action item sheet.
type ActionRow struct {
	Owner     string `json:"owner"`
	Task      string `json:"task"`
	Context   string `json:"context"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Attempts  int    `json:"attempts"`
}

type Writer struct {
	Dir string
	Now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Now: time.Now}
}

// Write saves report_<timestamp>_<name>.xlsx under the writer's directory
// and returns its path.
func (w *Writer) Write(name string, r types.ProcessingResult, ins aggregator.Insight) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("report_%s_%s.xlsx", now().Format("20060102_150405"), name))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ActionsSheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	for _, s := range []string{RisksSheet, OwnersSheet} {
		if _, err := f.NewSheet(s); err != nil {
			return "", fmt.Errorf("add sheet %s: %w", s, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("header style: %w", err)
	}

	actions := [][]any{actionHeader}
	for i, item := range r.ActionItems {
		status, ref, errText, attempts := "not dispatched", "", "", 0
		if i < len(r.DispatchOutcomes) {
			o := r.DispatchOutcomes[i]
			attempts = o.Attempts
			switch {
			case o.Succeeded && o.Reference != nil:
				status, ref = "created", o.Reference.URL
				if ref == "" {
					ref = o.Reference.ID
				}
			default:
				status, errText = "failed", o.Error
			}
		}
		actions = append(actions, []any{item.Owner, item.Description, item.ContextQuote, status, ref, attempts, errText})
	}

	risks := [][]any{riskHeader}
	for _, rp := range r.RiskPoints {
		risks = append(risks, []any{rp.SentimentScore, rp.DecisionQuote, rp.Speaker, rp.ContextText})
	}

	owners := [][]any{ownerHeader}
	for _, o := range ins.Owners {
		owners = append(owners, []any{o.Owner, o.Items, o.Created, o.Failed})
	}

	for sheet, rows := range map[string][][]any{ActionsSheet: actions, RisksSheet: risks, OwnersSheet: owners} {
		if err := writeRows(f, sheet, rows, bold); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

// ReadActionItems loads the action item sheet of a workbook, locating
// columns by header name so hand-edited sheets still load. Rows without a
// task are skipped.
func ReadActionItems(path string) ([]ActionRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheet := ActionsSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	ownerIdx, taskIdx, ctxIdx, statusIdx, refIdx, attemptsIdx := -1, -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "owner") || strings.Contains(l, "assignee"):
			if ownerIdx == -1 {
				ownerIdx = i
			}
		case strings.Contains(l, "task") || strings.Contains(l, "description"):
			if taskIdx == -1 {
				taskIdx = i
			}
		case strings.Contains(l, "context") || strings.Contains(l, "quote"):
			ctxIdx = i
		case strings.Contains(l, "status"):
			statusIdx = i
		case strings.Contains(l, "reference") || strings.Contains(l, "link") || strings.Contains(l, "url"):
			refIdx = i
		case strings.Contains(l, "attempt"):
			attemptsIdx = i
		}
	}
	if taskIdx == -1 {
		return nil, fmt.Errorf("no task column in %q", sheet)
	}

	cell := func(r []string, i int) string {
		if i >= 0 && i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}
	var out []ActionRow
	for _, r := range rows[1:] {
		row := ActionRow{
			Owner:     cell(r, ownerIdx),
			Task:      cell(r, taskIdx),
			Context:   cell(r, ctxIdx),
			Status:    cell(r, statusIdx),
			Reference: cell(r, refIdx),
		}
		row.Attempts, _ = strconv.Atoi(cell(r, attemptsIdx))
		if row.Task == "" {
			continue
		}
		if row.Owner == "" {
			row.Owner = types.UnknownSpeaker
		}
		out = append(out, row)
	}
	return out, nil
}
