// Package catalog manages the meal and dessert options offered per slot.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
)

type Repo interface {
	Get(ctx context.Context, slot menu.Slot) (menu.DayMenu, error)
	Append(ctx context.Context, slot menu.Slot, kind menu.Kind, opt menu.Option) error
	RemoveAt(ctx context.Context, slot menu.Slot, kind menu.Kind, index int, expectedID string) (menu.Option, error)
	Replace(ctx context.Context, menus []menu.DayMenu) error
}

type Store struct {
	repo  Repo
	weeks int
	days  int
	log   *slog.Logger
}

func NewStore(repo Repo, weeks, days int, log *slog.Logger) *Store {
	return &Store{repo: repo, weeks: weeks, days: days, log: log}
}

func (s *Store) Cycle() (weeks, days int) { return s.weeks, s.days }

func (s *Store) ListOptions(ctx context.Context, slot menu.Slot) (menu.DayMenu, error) {
	if err := slot.Validate(s.weeks, s.days); err != nil {
		return menu.DayMenu{}, err
	}
	return s.repo.Get(ctx, slot)
}

// AddOption appends name to the kind list of slot. Duplicate names are allowed.
func (s *Store) AddOption(ctx context.Context, slot menu.Slot, kind menu.Kind, name string) (menu.Option, error) {
	if err := slot.Validate(s.weeks, s.days); err != nil {
		return menu.Option{}, err
	}
	if !kind.IsValid() {
		return menu.Option{}, apperr.Validation("kind must be meal or dessert")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return menu.Option{}, menu.ErrBlankName
	}

	opt := menu.NewOption(name)
	if err := s.repo.Append(ctx, slot, kind, opt); err != nil {
		return menu.Option{}, err
	}

	s.log.InfoContext(ctx, "catalog option added", "week", slot.Week, "day", slot.Day, "kind", kind, "name", name)
	return opt, nil
}

func (s *Store) RemoveOption(ctx context.Context, slot menu.Slot, kind menu.Kind, index int) (menu.Option, error) {
	return s.RemoveOptionIf(ctx, slot, kind, index, "")
}

// RemoveOptionIf removes the option at index only while it is still expectedID.
// Assignments that name the removed option are left as they are.
func (s *Store) RemoveOptionIf(ctx context.Context, slot menu.Slot, kind menu.Kind, index int, expectedID string) (menu.Option, error) {
	if err := slot.Validate(s.weeks, s.days); err != nil {
		return menu.Option{}, err
	}

	removed, err := s.repo.RemoveAt(ctx, slot, kind, index, expectedID)
	if err != nil {
		return menu.Option{}, err
	}

	s.log.InfoContext(ctx, "catalog option removed", "week", slot.Week, "day", slot.Day, "kind", kind, "name", removed.Name)
	return removed, nil
}

// Import replaces the listed slots wholesale.
func (s *Store) Import(ctx context.Context, menus []menu.DayMenu) error {
	for i := range menus {
		if err := menus[i].Slot.Validate(s.weeks, s.days); err != nil {
			return err
		}
		for _, kind := range []menu.Kind{menu.KindMeal, menu.KindDessert} {
			for _, o := range menus[i].Options(kind) {
				if strings.TrimSpace(o.Name) == "" {
					return menu.ErrBlankName
				}
			}
		}
	}

	if err := s.repo.Replace(ctx, menus); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "catalog imported", "slots", len(menus))
	return nil
}
