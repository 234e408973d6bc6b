package filestore

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/observability"
)

// catalog.json: {"week_1": {"day_1": {"meals": [...], "desserts": [...]}}}
type dayOptions struct {
	Meals    []menu.Option `json:"meals"`
	Desserts []menu.Option `json:"desserts"`
}

type catalogDoc map[string]map[string]dayOptions

func weekKey(w int) string { return "week_" + strconv.Itoa(w) }
func dayKey(d int) string  { return "day_" + strconv.Itoa(d) }

func (doc catalogDoc) day(slot menu.Slot) dayOptions {
	return doc[weekKey(slot.Week)][dayKey(slot.Day)]
}

func (doc catalogDoc) put(slot menu.Slot, d dayOptions) {
	w, ok := doc[weekKey(slot.Week)]
	if !ok {
		w = make(map[string]dayOptions)
		doc[weekKey(slot.Week)] = w
	}
	w[dayKey(slot.Day)] = d
}

func (d *dayOptions) list(kind menu.Kind) *[]menu.Option {
	if kind == menu.KindDessert {
		return &d.Desserts
	}
	return &d.Meals
}

type CatalogRepo struct {
	file *jsonFile[catalogDoc]
}

func NewCatalogRepo(dir string, prom *observability.Prom) *CatalogRepo {
	return &CatalogRepo{
		file: newJSONFile(filepath.Join(dir, "catalog.json"), func() catalogDoc {
			return make(catalogDoc)
		}, prom),
	}
}

func (r *CatalogRepo) Get(ctx context.Context, slot menu.Slot) (m menu.DayMenu, err error) {
	err = r.file.view("catalog.get", func(doc catalogDoc) error {
		d := doc.day(slot)
		m = menu.DayMenu{
			Slot:     slot,
			Meals:    append([]menu.Option{}, d.Meals...),
			Desserts: append([]menu.Option{}, d.Desserts...),
		}
		return nil
	})
	return m, apperr.Storage("catalog.get", err)
}

func (r *CatalogRepo) Append(ctx context.Context, slot menu.Slot, kind menu.Kind, opt menu.Option) error {
	err := r.file.update("catalog.append", func(doc *catalogDoc) error {
		d := doc.day(slot)
		l := d.list(kind)
		*l = append(*l, opt)
		doc.put(slot, d)
		return nil
	})
	return apperr.Storage("catalog.append", err)
}

// RemoveAt deletes the option at index. A non-empty expectedID must match the
// option currently at that index.
func (r *CatalogRepo) RemoveAt(ctx context.Context, slot menu.Slot, kind menu.Kind, index int, expectedID string) (removed menu.Option, err error) {
	err = r.file.update("catalog.remove", func(doc *catalogDoc) error {
		d := doc.day(slot)
		l := d.list(kind)

		if index < 0 || index >= len(*l) {
			return menu.ErrIndexOutOfRange
		}
		if expectedID != "" && (*l)[index].ID != expectedID {
			return menu.ErrIndexOutOfRange
		}

		removed = (*l)[index]
		*l = append((*l)[:index:index], (*l)[index+1:]...)
		doc.put(slot, d)
		return nil
	})
	return removed, apperr.Storage("catalog.remove", err)
}

// Replace overwrites whole slots; slots not mentioned are left alone.
func (r *CatalogRepo) Replace(ctx context.Context, menus []menu.DayMenu) error {
	err := r.file.update("catalog.replace", func(doc *catalogDoc) error {
		for _, m := range menus {
			doc.put(m.Slot, dayOptions{
				Meals:    append([]menu.Option{}, m.Meals...),
				Desserts: append([]menu.Option{}, m.Desserts...),
			})
		}
		return nil
	})
	return apperr.Storage("catalog.replace", err)
}
