package sheet

import (
	"fmt"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
)

const (
	HeaderRows = 2
	NameColumn = 0
)

// Layout fixes the shape of the grid: a name column followed by a
// (meal, dessert) column pair for every (week, day) of the cycle.
type Layout struct {
	Weeks int
	Days  int
}

func DefaultLayout() Layout {
	return Layout{Weeks: 4, Days: 5}
}

func (l Layout) Width() int {
	return 1 + l.Weeks*l.Days*2
}

// Column maps a slot and kind to its 0-based column.
func (l Layout) Column(slot menu.Slot, kind menu.Kind) (int, error) {
	if err := slot.Validate(l.Weeks, l.Days); err != nil {
		return 0, err
	}
	if !kind.IsValid() {
		return 0, apperr.Validation("kind must be meal or dessert")
	}

	return 1 + (slot.Week-1)*l.Days*2 + (slot.Day-1)*2 + kind.Offset(), nil
}

// Coord is the inverse of Column.
func (l Layout) Coord(col int) (menu.Slot, menu.Kind, error) {
	if col < 1 || col >= l.Width() {
		return menu.Slot{}, "", fmt.Errorf("column %d outside data range [1,%d)", col, l.Width())
	}

	i := col - 1
	kind := menu.KindMeal
	if i%2 == 1 {
		kind = menu.KindDessert
	}
	pair := i / 2

	return menu.Slot{Week: pair/l.Days + 1, Day: pair%l.Days + 1}, kind, nil
}

// Header returns the two header rows: "<day> - week N" over each column
// pair, then the Meal/Dessert labels.
func (l Layout) Header() [][]string {
	top := make([]string, l.Width())
	sub := make([]string, l.Width())
	top[NameColumn] = "Full name"

	for w := 1; w <= l.Weeks; w++ {
		for d := 1; d <= l.Days; d++ {
			slot := menu.Slot{Week: w, Day: d}
			col, _ := l.Column(slot, menu.KindMeal)
			top[col] = slot.String()
			sub[col] = menu.KindMeal.Title()
			sub[col+1] = menu.KindDessert.Title()
		}
	}

	return [][]string{top, sub}
}
