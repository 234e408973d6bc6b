// Package app builds the object graph shared by the api, worker and mealctl
// binaries from a config.Config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/mealplanner/internal/audit"
	"github.com/geocoder89/mealplanner/internal/catalog"
	"github.com/geocoder89/mealplanner/internal/config"
	"github.com/geocoder89/mealplanner/internal/conversation"
	"github.com/geocoder89/mealplanner/internal/db"
	"github.com/geocoder89/mealplanner/internal/http/handlers"
	"github.com/geocoder89/mealplanner/internal/identity"
	"github.com/geocoder89/mealplanner/internal/lock"
	"github.com/geocoder89/mealplanner/internal/notifications"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/planner"
	"github.com/geocoder89/mealplanner/internal/repo/filestore"
	"github.com/geocoder89/mealplanner/internal/repo/postgres"
	"github.com/geocoder89/mealplanner/internal/reservation"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	Cfg      config.Config
	Log      *slog.Logger
	Prom     *observability.Prom
	Registry *prometheus.Registry

	Identity     *identity.Registry
	Catalog      *catalog.Store
	Sheet        *sheet.Sheet
	Audit        *audit.Log
	Planner      *planner.Store
	Reservations *reservation.Service
	Sessions     *conversation.Sessions
	Engine       *conversation.Engine

	// Ready lists what /readyz pings.
	Ready map[string]handlers.Pinger

	closers []func()
}

type repos struct {
	users        identity.UsersRepo
	catalog      catalog.Repo
	reservations reservation.Repo
}

// New opens every store named by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a := &App{
		Cfg:      cfg,
		Log:      log,
		Registry: reg,
		Prom:     observability.NewProm(reg),
		Ready:    map[string]handlers.Pinger{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	r, err := a.openRepos(ctx)
	if err != nil {
		return nil, err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, err
	}

	a.Sheet, err = sheet.Open(ctx, sheet.Options{
		Path:   cfg.SheetPath,
		Secret: cfg.SheetSecret,
		Layout: sheet.Layout{Weeks: cfg.Weeks, Days: cfg.Days},
		Locker: locker,
		Prom:   a.Prom,
		Log:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("open sheet: %w", err)
	}
	a.Ready["sheet"] = handlers.PingFunc(func(ctx context.Context) error {
		_, err := a.Sheet.Read(ctx)
		return err
	})

	a.Audit, err = audit.Open(cfg.AuditLogPath, a.Prom)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	a.Identity = identity.NewRegistry(r.users, log)
	a.Catalog = catalog.NewStore(r.catalog, cfg.Weeks, cfg.Days, log)
	a.Planner = planner.NewStore(a.Sheet, a.Catalog, a.Audit, log)
	a.Reservations = reservation.NewService(r.reservations, a.Catalog, reservation.Calendar{
		Start: cfg.CycleStart,
		Weeks: cfg.Weeks,
		Days:  cfg.Days,
	}, log)

	a.Sessions = conversation.NewSessions(cfg.SessionTTL)
	a.Engine = conversation.NewEngine(
		a.Identity, a.Catalog, a.Planner, a.notifier(), a.Sessions,
		conversation.Config{Weeks: cfg.Weeks, Days: cfg.Days, AuditInlineMax: cfg.AuditInlineMax},
		a.Prom, log,
	)

	return a, nil
}

func (a *App) openRepos(ctx context.Context) (repos, error) {
	if !a.Cfg.UsePostgres() {
		a.Log.Info("using file store", "dir", a.Cfg.DataDir)
		return repos{
			users:        filestore.NewUsersRepo(a.Cfg.DataDir, a.Prom),
			catalog:      filestore.NewCatalogRepo(a.Cfg.DataDir, a.Prom),
			reservations: filestore.NewReservationsRepo(a.Cfg.DataDir, a.Prom),
		}, nil
	}

	if err := db.Migrate(ctx, a.Cfg.DBURL); err != nil {
		return repos{}, err
	}

	pool, err := db.NewPool(ctx, a.Cfg.DBURL)
	if err != nil {
		return repos{}, fmt.Errorf("db connect: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.Ready["db"] = pool

	a.Log.Info("using postgres store")
	return repos{
		users:        postgres.NewUsersRepo(pool, a.Prom),
		catalog:      postgres.NewCatalogRepo(pool, a.Prom),
		reservations: postgres.NewReservationsRepo(pool, a.Prom),
	}, nil
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	if !a.Cfg.UseRedisLock() {
		return lock.NewLocal(), nil
	}

	client := lock.NewRedisClient(lock.RedisConfig{
		Addr:     a.Cfg.RedisAddr,
		Password: a.Cfg.RedisPassword,
		DB:       a.Cfg.RedisDB,
	})
	l := lock.NewRedis(client, a.Cfg.LockLease, a.Log)
	a.closers = append(a.closers, func() { _ = l.Close() })

	if err := l.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.Ready["redis"] = l
	return l, nil
}

func (a *App) notifier() notifications.Notifier {
	if a.Cfg.NotifierURL == "" {
		return notifications.NewLogNotifier(a.Log)
	}
	return notifications.NewProtectedNotifier(
		notifications.NewWebhookNotifier(a.Cfg.NotifierURL, a.Cfg.NotifierTimeout),
		notifications.ProtectedNotifierConfig{Timeout: a.Cfg.NotifierTimeout, Log: a.Log},
	)
}

// Bootstrap makes sure the configured administrator exists and has a row in
// the plan.
func (a *App) Bootstrap(ctx context.Context) error {
	if _, err := a.Identity.EnsureAdmin(ctx, a.Cfg.AdminUsername, a.Cfg.AdminName, a.Cfg.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	u, err := a.Identity.Lookup(ctx, a.Cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if _, err := a.Planner.AddRow(ctx, u.FullName); err != nil {
		return fmt.Errorf("bootstrap admin row: %w", err)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
