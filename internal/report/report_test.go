package report

import (
	"strings"
	"testing"
	"time"
)

func TestSchedule_TruncatesAndLimitsRows(t *testing.T) {
	records := [][]string{
		{"Full name", "Saturday - week 1"},
		{"", "Meal"},
	}
	for i := 0; i < 13; i++ {
		records = append(records, []string{"Someone With A Very Long Name", ""})
	}

	out := Schedule(records)

	if !strings.Contains(out, "Someone With A  | -") {
		t.Fatalf("expected truncated name and placeholder, got:\n%s", out)
	}
	if !strings.Contains(out, "- | Meal\n"+strings.Repeat("─", 50)) {
		t.Fatalf("expected separator after header rows, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "... and 3 more rows") {
		t.Fatalf("expected overflow note, got:\n%s", out)
	}
}

func TestAudit_Threshold(t *testing.T) {
	text, doc := Audit("short", 3000)
	if doc != nil || !strings.HasSuffix(text, "short") {
		t.Fatalf("expected inline log, got %q %v", text, doc)
	}

	long := strings.Repeat("x", 3001)
	_, doc = Audit(long, 3000)
	if doc == nil || doc.Name != AuditDocName || len(doc.Content) != 3001 {
		t.Fatalf("expected document, got %+v", doc)
	}
}

func TestCSVAndExportName(t *testing.T) {
	b, err := CSV([][]string{{"Full name", "a,b"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "Full name,\"a,b\"\n" {
		t.Fatalf("unexpected csv %q", b)
	}

	got := ExportName(time.Date(2026, 2, 1, 9, 5, 0, 0, time.UTC))
	if got != "meal_plan-20260201T090500Z.csv" {
		t.Fatalf("unexpected name %s", got)
	}
}
