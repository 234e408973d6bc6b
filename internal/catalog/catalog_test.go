package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/catalog"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/repo/filestore"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	return catalog.NewStore(filestore.NewCatalogRepo(t.TempDir(), nil), 4, 5, observability.NopLogger())
}

func TestAddListRemoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	slot := menu.Slot{Week: 1, Day: 1}

	rice, err := s.AddOption(ctx, slot, menu.KindMeal, "  Rice ")
	require.NoError(t, err)
	require.Equal(t, "Rice", rice.Name)

	m, err := s.ListOptions(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, []menu.Option{rice}, m.Meals)

	removed, err := s.RemoveOption(ctx, slot, menu.KindMeal, 0)
	require.NoError(t, err)
	require.Equal(t, rice, removed)

	m, err = s.ListOptions(ctx, slot)
	require.NoError(t, err)
	require.Empty(t, m.Meals)
}

func TestDuplicateNamesAreKept(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	slot := menu.Slot{Week: 2, Day: 3}

	_, err := s.AddOption(ctx, slot, menu.KindDessert, "Cake")
	require.NoError(t, err)
	_, err = s.AddOption(ctx, slot, menu.KindDessert, "Cake")
	require.NoError(t, err)

	m, err := s.ListOptions(ctx, slot)
	require.NoError(t, err)
	require.Len(t, m.Desserts, 2)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.AddOption(ctx, menu.Slot{Week: 1, Day: 1}, menu.KindMeal, "   ")
	require.ErrorIs(t, err, menu.ErrBlankName)

	_, err = s.AddOption(ctx, menu.Slot{Week: 5, Day: 1}, menu.KindMeal, "Rice")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.RemoveOption(ctx, menu.Slot{Week: 1, Day: 1}, menu.KindMeal, 0)
	require.ErrorIs(t, err, menu.ErrIndexOutOfRange)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRemoveOptionIf_StaleIndex(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	slot := menu.Slot{Week: 1, Day: 1}

	a, err := s.AddOption(ctx, slot, menu.KindMeal, "A")
	require.NoError(t, err)
	b, err := s.AddOption(ctx, slot, menu.KindMeal, "B")
	require.NoError(t, err)

	// someone else deleted A, so B moved to index 0
	_, err = s.RemoveOption(ctx, slot, menu.KindMeal, 0)
	require.NoError(t, err)

	_, err = s.RemoveOptionIf(ctx, slot, menu.KindMeal, 1, b.ID)
	require.ErrorIs(t, err, menu.ErrIndexOutOfRange)

	_, err = s.RemoveOptionIf(ctx, slot, menu.KindMeal, 0, a.ID)
	require.ErrorIs(t, err, menu.ErrIndexOutOfRange)

	got, err := s.RemoveOptionIf(ctx, slot, menu.KindMeal, 0, b.ID)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestImportYAML(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	src := `
weeks:
  - week: 1
    days:
      - day: 1
        meals: [Rice, Pasta]
        desserts: [Cake]
      - day: 2
        meals: [Soup]
`
	menus, err := catalog.DecodeYAML(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, menus, 2)

	require.NoError(t, s.Import(ctx, menus))

	m, err := s.ListOptions(ctx, menu.Slot{Week: 1, Day: 1})
	require.NoError(t, err)
	require.Len(t, m.Meals, 2)
	require.Equal(t, "Pasta", m.Meals[1].Name)
	require.Equal(t, "Cake", m.Desserts[0].Name)

	_, err = catalog.DecodeYAML(strings.NewReader("weeks:\n  - week: 1\n    colour: red\n"))
	require.Error(t, err)
}
