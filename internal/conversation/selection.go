package conversation

import (
	"strconv"
	"strings"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
)

// SelectionKind tags what a button press means.
type SelectionKind string

const (
	SelectUser    SelectionKind = "user"
	SelectWeek    SelectionKind = "week"
	SelectDay     SelectionKind = "day"
	SelectOption  SelectionKind = "opt"  // assign Item option Payload
	SelectDelMode SelectionKind = "delm" // open the deletion list for Item
	SelectDelete  SelectionKind = "del"  // delete Item at Index, expected id Payload
	SelectBack    SelectionKind = "back"
	SelectDone    SelectionKind = "done"
	SelectConfirm SelectionKind = "ok"
	SelectCancel  SelectionKind = "cancel"
	SelectNoop    SelectionKind = "noop"
)

var selectionKinds = map[SelectionKind]bool{
	SelectUser: true, SelectWeek: true, SelectDay: true, SelectOption: true,
	SelectDelMode: true, SelectDelete: true, SelectBack: true, SelectDone: true,
	SelectConfirm: true, SelectCancel: true, SelectNoop: true,
}

// Selection is a parsed button press. Only the fields relevant to Kind are set.
type Selection struct {
	Kind    SelectionKind
	Week    int
	Day     int
	Item    menu.Kind
	Index   int
	Payload string
}

const tokenSep = "|"

// Token encodes s as kind|week|day|item|index|payload.
func (s Selection) Token() string {
	return strings.Join([]string{
		string(s.Kind),
		strconv.Itoa(s.Week),
		strconv.Itoa(s.Day),
		string(s.Item),
		strconv.Itoa(s.Index),
		s.Payload,
	}, tokenSep)
}

var errBadToken = apperr.Validation("that button is no longer valid")

// ParseSelection is the inverse of Token. The payload may itself contain the
// separator.
func ParseSelection(token string) (Selection, error) {
	parts := strings.SplitN(token, tokenSep, 6)
	if len(parts) != 6 {
		return Selection{}, errBadToken
	}

	kind := SelectionKind(parts[0])
	if !selectionKinds[kind] {
		return Selection{}, errBadToken
	}

	week, err1 := strconv.Atoi(parts[1])
	day, err2 := strconv.Atoi(parts[2])
	index, err3 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return Selection{}, errBadToken
	}

	item := menu.Kind(parts[3])
	if item != "" && !item.IsValid() {
		return Selection{}, errBadToken
	}

	return Selection{
		Kind:    kind,
		Week:    week,
		Day:     day,
		Item:    item,
		Index:   index,
		Payload: parts[5],
	}, nil
}
