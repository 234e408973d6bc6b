package menu

import (
	"strconv"
	"strings"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/google/uuid"
)

// Kind is one of the two option lists kept for every slot.
type Kind string

const (
	KindMeal    Kind = "meal"
	KindDessert Kind = "dessert"
)

func (k Kind) IsValid() bool {
	return k == KindMeal || k == KindDessert
}

// Offset is the column offset of the kind inside a (week, day) pair.
func (k Kind) Offset() int {
	if k == KindDessert {
		return 1
	}
	return 0
}

func (k Kind) Title() string {
	if k == KindDessert {
		return "Dessert"
	}
	return "Meal"
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", apperr.Validation("kind must be meal or dessert")
	}
	return k, nil
}

// DayNames are the serving days of a cycle week, in order.
var DayNames = []string{"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday"}

func DayName(day int) string {
	if day >= 1 && day <= len(DayNames) {
		return DayNames[day-1]
	}
	return "Day " + strconv.Itoa(day)
}

// Slot addresses a (week, day) pair of the cycle. Both are 1-based.
type Slot struct {
	Week int `json:"week" yaml:"week"`
	Day  int `json:"day" yaml:"day"`
}

func (s Slot) Validate(weeks, days int) error {
	if s.Week < 1 || s.Week > weeks {
		return apperr.Validation("week must be between 1 and %d", weeks)
	}
	if s.Day < 1 || s.Day > days {
		return apperr.Validation("day must be between 1 and %d", days)
	}
	return nil
}

func (s Slot) String() string {
	return DayName(s.Day) + " - week " + strconv.Itoa(s.Week)
}

type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewOption(name string) Option {
	return Option{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
}

// DayMenu is the catalog entry of one slot.
type DayMenu struct {
	Slot     Slot     `json:"slot"`
	Meals    []Option `json:"meals"`
	Desserts []Option `json:"desserts"`
}

func (m DayMenu) Options(kind Kind) []Option {
	if kind == KindDessert {
		return m.Desserts
	}
	return m.Meals
}

func (m DayMenu) Find(kind Kind, id string) (Option, bool) {
	for _, o := range m.Options(kind) {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

func (m DayMenu) Empty() bool {
	return len(m.Meals) == 0 && len(m.Desserts) == 0
}

var (
	ErrIndexOutOfRange   = apperr.New(apperr.KindConflict, "that option is no longer at this position, the list has been refreshed")
	ErrEmptyMenu         = apperr.New(apperr.KindNotFound, "no options have been added for this day yet")
	ErrOptionUnavailable = apperr.New(apperr.KindConflict, "that option is no longer offered for this day")
	ErrBlankName         = apperr.New(apperr.KindValidation, "option name cannot be empty")
)
