// Package report renders read-side projections of the meal plan.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

const (
	ScheduleRows     = 12
	ScheduleCellSize = 15
	AuditDocName     = "change_log.txt"
)

// Document is a file attachment handed to the transport.
type Document struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// Schedule renders the first ScheduleRows rows of records (headers
// included). Empty cells show as "-" and long ones are cut.
func Schedule(records [][]string) string {
	var b strings.Builder
	b.WriteString("Meal plan\n\n")

	for i, row := range records {
		if i >= ScheduleRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = truncate(v, ScheduleCellSize)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
		if i == 1 {
			b.WriteString(strings.Repeat("─", 50))
			b.WriteByte('\n')
		}
	}

	if n := len(records) - ScheduleRows; n > 0 {
		fmt.Fprintf(&b, "\n... and %d more rows", n)
	}
	return b.String()
}

func truncate(v string, n int) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	r := []rune(v)
	if len(r) > n {
		return string(r[:n])
	}
	return v
}

// Audit returns the log inline when it fits in inlineMax characters,
// otherwise as a document.
func Audit(log string, inlineMax int) (string, *Document) {
	if len([]rune(log)) <= inlineMax {
		return "Change log\n\n" + log, nil
	}
	return "Change log (attached)", &Document{
		Name:        AuditDocName,
		ContentType: "text/plain; charset=utf-8",
		Content:     []byte(log),
	}
}

// CSV encodes records, headers included, as plain CSV without the seal line.
func CSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportName is the object/file name of an export taken at t.
func ExportName(t time.Time) string {
	return "meal_plan-" + t.UTC().Format("20060102T150405Z") + ".csv"
}
