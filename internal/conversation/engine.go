// Package conversation runs the per-chat state machines that turn button
// presses and typed messages into catalog, assignment and identity operations.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/notifications"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/planner"
	"github.com/geocoder89/mealplanner/internal/sheet"
)

type Identity interface {
	Authenticate(ctx context.Context, username, password string, chatID int64) (user.User, error)
	VerifyPassword(ctx context.Context, username, password string) error
	CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	EnsureFullNameFree(ctx context.Context, fullName string) error
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	ListUsers(ctx context.Context) ([]user.User, error)
	Lookup(ctx context.Context, username string) (user.User, error)
}

type Catalog interface {
	ListOptions(ctx context.Context, slot menu.Slot) (menu.DayMenu, error)
	AddOption(ctx context.Context, slot menu.Slot, kind menu.Kind, name string) (menu.Option, error)
	RemoveOptionIf(ctx context.Context, slot menu.Slot, kind menu.Kind, index int, expectedID string) (menu.Option, error)
}

type Planner interface {
	Assign(ctx context.Context, req planner.WriteRequest) (plan.Choice, error)
	Get(ctx context.Context, slot menu.Slot, name string) (plan.Choice, error)
	AddRow(ctx context.Context, name string) (bool, error)
	Snapshot(ctx context.Context) (*sheet.Grid, error)
	AuditLog(ctx context.Context) (string, error)
}

type Config struct {
	Weeks          int
	Days           int
	AuditInlineMax int
}

type Engine struct {
	identity Identity
	catalog  Catalog
	planner  Planner
	notifier notifications.Notifier
	sessions *Sessions
	cfg      Config
	prom     *observability.Prom
	log      *slog.Logger
}

func NewEngine(
	identity Identity,
	catalog Catalog,
	planner Planner,
	notifier notifications.Notifier,
	sessions *Sessions,
	cfg Config,
	prom *observability.Prom,
	log *slog.Logger,
) *Engine {
	if cfg.AuditInlineMax <= 0 {
		cfg.AuditInlineMax = 3000
	}
	return &Engine{
		identity: identity,
		catalog:  catalog,
		planner:  planner,
		notifier: notifier,
		sessions: sessions,
		cfg:      cfg,
		prom:     prom,
		log:      log,
	}
}

// Handle processes one event. Events of the same chat are handled one at a
// time, in arrival order.
func (e *Engine) Handle(ctx context.Context, ev Event) Response {
	h := e.sessions.Acquire(ev.ChatID)
	defer h.Release()

	sess := h.Session()
	secretInput := ev.Selection == nil && sess.inFlow() && sess.State.Secret()
	flow := FlowNone
	if sess != nil {
		flow = sess.Flow
	}

	resp, err := e.dispatch(ctx, h, ev)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		resp = e.fail(ctx, h, err)
	} else if resp.Ignored {
		outcome = "ignored"
	}
	if secretInput {
		resp.DeleteInbound = true
	}

	// a chat keeps a session only while logged in or inside a flow
	if s := h.Session(); s != nil && s.Principal == nil && !s.inFlow() {
		h.Evict()
	}

	if sess == nil && h.Session() != nil {
		flow = h.Session().Flow
	}
	e.prom.CountChatEvent(string(flow), outcome)
	return resp
}

func (e *Engine) dispatch(ctx context.Context, h *Handle, ev Event) (Response, error) {
	if err := e.refreshPrincipal(ctx, h); err != nil {
		return Response{}, err
	}
	sess := h.Session()

	if ev.Selection != nil {
		return e.onSelection(ctx, h, *ev.Selection)
	}

	msg := strings.TrimSpace(ev.Text)
	if cmd, ok := parseSlash(msg); ok {
		return e.run(ctx, h, cmd)
	}
	if cmd, ok := labels[msg]; ok && (cmd == cmdCancel || !(sess.inFlow() && sess.State.AwaitingInput())) {
		return e.run(ctx, h, cmd)
	}

	if sess.inFlow() {
		if err := e.checkFlowAccess(sess); err != nil {
			return Response{}, err
		}
		return e.onText(ctx, sess, ev.Text)
	}

	return e.menu(sess, "Please choose an option from the menu."), nil
}

// refreshPrincipal reloads the logged-in user so role changes and
// deactivation take effect on the next event.
func (e *Engine) refreshPrincipal(ctx context.Context, h *Handle) error {
	sess := h.Session()
	if sess == nil || sess.Principal == nil {
		return nil
	}

	u, err := e.identity.Lookup(ctx, sess.Principal.Username)
	if apperr.KindOf(err) == apperr.KindNotFound || (err == nil && !u.Active) {
		e.log.InfoContext(ctx, "session dropped, user gone or inactive", "chat_id", sess.ChatID, "username", sess.Principal.Username)
		h.Evict()
		return nil
	}
	if err != nil {
		return err
	}

	sess.Principal.FullName = u.FullName
	sess.Principal.Role = u.Role
	return nil
}

// checkFlowAccess re-checks role requirements of the running flow on every step.
func (e *Engine) checkFlowAccess(sess *Session) error {
	switch sess.Flow {
	case FlowLogin:
		return nil
	case FlowAddUser, FlowEditCatalog, FlowBroadcast:
		return requireAdmin(sess)
	case FlowAssign:
		if err := requireLogin(sess); err != nil {
			return err
		}
		if sess.Target != "" && sess.Target != sess.Principal.Username {
			return requireAdmin(sess)
		}
		if sess.State == StateAssignUser {
			return requireAdmin(sess)
		}
		return nil
	default:
		return requireLogin(sess)
	}
}

func requireLogin(sess *Session) error {
	if sess == nil || sess.Principal == nil {
		return user.ErrNotLoggedIn
	}
	return nil
}

func requireAdmin(sess *Session) error {
	if err := requireLogin(sess); err != nil {
		return err
	}
	if !sess.Principal.IsAdmin() {
		return user.ErrForbidden
	}
	return nil
}

// fail folds err into a response. Validation and conflict errors re-prompt
// the current state; auth and not-found errors end the flow; anything else
// is a storage failure that ends the flow and alerts the admins.
func (e *Engine) fail(ctx context.Context, h *Handle, err error) Response {
	sess := h.Session()

	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict:
		if sess.inFlow() {
			prompt, perr := e.render(ctx, sess)
			if perr == nil {
				prompt.Text = apperr.Message(err) + "\n\n" + prompt.Text
				return prompt
			}
			if k := apperr.KindOf(perr); k == apperr.KindValidation || k == apperr.KindConflict {
				sess.end()
				return e.menu(sess, apperr.Message(perr))
			}
			return e.fail(ctx, h, perr)
		}
		return e.menu(sess, apperr.Message(err))

	case apperr.KindAuth, apperr.KindNotFound:
		if sess.inFlow() {
			sess.end()
		}
		return e.menu(sess, apperr.Message(err))
	}

	if sess.inFlow() {
		sess.end()
	}
	e.log.ErrorContext(ctx, "chat operation failed", "chat_id", h.chat, "err", err)
	e.alertAdmins(ctx, err)
	return e.menu(sess, "Something went wrong while saving your change. Please contact an administrator.")
}

func (e *Engine) alertAdmins(ctx context.Context, cause error) {
	users, err := e.identity.ListUsers(ctx)
	if err != nil {
		e.log.ErrorContext(ctx, "admin alert skipped, cannot list users", "err", err)
		return
	}

	var chats []int64
	for _, u := range users {
		if u.IsAdmin() && u.Active && u.Linked() {
			chats = append(chats, *u.ChatID)
		}
	}

	res := notifications.Broadcast(ctx, e.notifier, chats, "Storage error: "+cause.Error())
	if res.Failed > 0 {
		e.log.WarnContext(ctx, "admin alert partially failed", "sent", res.Sent, "failed", res.Failed)
	}
}

// RunJanitor sweeps expired sessions until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := e.sessions.Sweep(); n > 0 {
				e.log.Info("expired chat sessions evicted", "count", n)
			}
			e.prom.SetActiveSessions(e.sessions.Len())
		}
	}
}
