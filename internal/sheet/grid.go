package sheet

import (
	"fmt"
	"strings"

	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
)

// Grid is an in-memory copy of the sheet. Row indexes are 0-based data rows
// (headers excluded).
type Grid struct {
	layout Layout
	header [][]string
	rows   [][]string
}

func newGrid(l Layout) *Grid {
	return &Grid{layout: l, header: l.Header()}
}

func (g *Grid) Layout() Layout { return g.layout }

func (g *Grid) Len() int { return len(g.rows) }

func (g *Grid) FindRow(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	for i, r := range g.rows {
		if strings.TrimSpace(r[NameColumn]) == name {
			return i, true
		}
	}
	return 0, false
}

func (g *Grid) AppendRow(name string) int {
	r := make([]string, g.layout.Width())
	r[NameColumn] = strings.TrimSpace(name)
	g.rows = append(g.rows, r)
	return len(g.rows) - 1
}

func (g *Grid) Name(row int) string {
	return g.rows[row][NameColumn]
}

func (g *Grid) Names() []string {
	out := make([]string, 0, len(g.rows))
	for _, r := range g.rows {
		out = append(out, r[NameColumn])
	}
	return out
}

func (g *Grid) Set(row int, slot menu.Slot, kind menu.Kind, value string) error {
	if row < 0 || row >= len(g.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	col, err := g.layout.Column(slot, kind)
	if err != nil {
		return err
	}
	g.rows[row][col] = value
	return nil
}

func (g *Grid) Choice(row int, slot menu.Slot) (plan.Choice, error) {
	if row < 0 || row >= len(g.rows) {
		return plan.Choice{}, fmt.Errorf("row %d out of range", row)
	}
	col, err := g.layout.Column(slot, menu.KindMeal)
	if err != nil {
		return plan.Choice{}, err
	}
	r := g.rows[row]
	return plan.Choice{Meal: r[col], Dessert: r[col+1]}, nil
}

// Records returns a copy of every row, headers first.
func (g *Grid) Records() [][]string {
	out := make([][]string, 0, len(g.header)+len(g.rows))
	for _, r := range g.header {
		out = append(out, append([]string(nil), r...))
	}
	for _, r := range g.rows {
		out = append(out, append([]string(nil), r...))
	}
	return out
}

func (g *Grid) load(records [][]string) error {
	if len(records) < HeaderRows {
		return fmt.Errorf("sheet has %d rows, want at least %d header rows", len(records), HeaderRows)
	}

	width := g.layout.Width()
	for i, r := range records {
		if len(r) != width {
			return fmt.Errorf("row %d has %d columns, want %d", i+1, len(r), width)
		}
	}

	g.header = records[:HeaderRows]
	g.rows = records[HeaderRows:]
	return nil
}
