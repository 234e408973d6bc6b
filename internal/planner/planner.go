// Package planner is the assignment store: who eats what on which slot.
package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer(observability.TracerName)

// Catalog is the slice of the catalog store the planner needs.
type Catalog interface {
	ListOptions(ctx context.Context, slot menu.Slot) (menu.DayMenu, error)
}

type AuditLog interface {
	Append(ctx context.Context, e plan.AuditEntry) error
	Read(ctx context.Context) (string, error)
}

type Store struct {
	sheet   *sheet.Sheet
	catalog Catalog
	audit   AuditLog
	log     *slog.Logger
	now     func() time.Time
}

func NewStore(sh *sheet.Sheet, catalog Catalog, audit AuditLog, log *slog.Logger) *Store {
	return &Store{sheet: sh, catalog: catalog, audit: audit, log: log, now: time.Now}
}

// WriteRequest assigns OptionID to the Target row. Actor and Target are
// display names; they differ when an admin edits someone else's meals.
type WriteRequest struct {
	Actor    string
	Target   string
	Slot     menu.Slot
	Kind     menu.Kind
	OptionID string
}

// Assign writes the chosen option's name into the target's cell and records
// one audit entry. The option must still be offered for the slot at commit
// time. Writing the same value twice leaves the grid unchanged.
func (s *Store) Assign(ctx context.Context, req WriteRequest) (_ plan.Choice, err error) {
	ctx, span := tracer.Start(ctx, "planner.Assign")
	span.SetAttributes(
		attribute.String("plan.slot", req.Slot.String()),
		attribute.String("plan.kind", string(req.Kind)),
		attribute.Bool("plan.on_behalf", req.Actor != req.Target),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		}
		span.End()
	}()

	l := s.sheet.Layout()
	if err := req.Slot.Validate(l.Weeks, l.Days); err != nil {
		return plan.Choice{}, err
	}
	if !req.Kind.IsValid() {
		return plan.Choice{}, apperr.Validation("kind must be meal or dessert")
	}

	var (
		value  string
		choice plan.Choice
	)
	err = s.sheet.WithExclusiveAccess(ctx, func(g *sheet.Grid) error {
		day, err := s.catalog.ListOptions(ctx, req.Slot)
		if err != nil {
			return err
		}
		opt, ok := day.Find(req.Kind, req.OptionID)
		if !ok {
			return menu.ErrOptionUnavailable
		}

		row, ok := g.FindRow(req.Target)
		if !ok {
			return plan.ErrUserRowNotFound
		}

		if err := g.Set(row, req.Slot, req.Kind, opt.Name); err != nil {
			return err
		}
		value = opt.Name

		choice, err = g.Choice(row, req.Slot)
		return err
	})
	if err != nil {
		return plan.Choice{}, err
	}

	entry := plan.AuditEntry{
		Actor: req.Actor,
		Slot:  req.Slot,
		Kind:  req.Kind,
		Value: value,
		At:    s.now(),
	}
	if req.Target != req.Actor {
		entry.OnBehalfOf = req.Target
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		// the cell is already committed; surface the failure so it reaches the admins
		s.log.ErrorContext(ctx, "audit append failed after commit",
			"actor", req.Actor, "target", req.Target, "slot", req.Slot.String(), "err", err)
		return choice, err
	}

	s.log.InfoContext(ctx, "assignment written",
		"actor", req.Actor, "target", req.Target, "slot", req.Slot.String(), "kind", req.Kind, "value", value)
	return choice, nil
}

// Get reads the current choice without taking the lock.
func (s *Store) Get(ctx context.Context, slot menu.Slot, name string) (plan.Choice, error) {
	l := s.sheet.Layout()
	if err := slot.Validate(l.Weeks, l.Days); err != nil {
		return plan.Choice{}, err
	}

	g, err := s.sheet.Read(ctx)
	if err != nil {
		return plan.Choice{}, err
	}
	row, ok := g.FindRow(name)
	if !ok {
		return plan.Choice{}, plan.ErrUserRowNotFound
	}
	return g.Choice(row, slot)
}

// AddRow appends an empty row for name unless one already exists.
func (s *Store) AddRow(ctx context.Context, name string) (added bool, err error) {
	err = s.sheet.WithExclusiveAccess(ctx, func(g *sheet.Grid) error {
		if _, ok := g.FindRow(name); ok {
			return nil
		}
		g.AppendRow(name)
		added = true
		return nil
	})
	if err == nil && added {
		s.log.InfoContext(ctx, "meal plan row added", "name", name)
	}
	return added, err
}

// Snapshot returns a verified copy of the whole grid.
func (s *Store) Snapshot(ctx context.Context) (*sheet.Grid, error) {
	return s.sheet.Read(ctx)
}

func (s *Store) AuditLog(ctx context.Context) (string, error) {
	return s.audit.Read(ctx)
}
