package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/report"
)

type command string

const (
	cmdStart          command = "start"
	cmdLogin          command = "login"
	cmdSchedule       command = "schedule"
	cmdAddUser        command = "adduser"
	cmdListUsers      command = "users"
	cmdManageMenu     command = "menu"
	cmdEditUserMeals  command = "edituser"
	cmdMyMeals        command = "mymeals"
	cmdViewLog        command = "log"
	cmdBroadcast      command = "broadcast"
	cmdChangePassword command = "password"
	cmdLogout         command = "logout"
	cmdCancel         command = "cancel"
)

// Keyboard labels.
const (
	LabelLogin          = "Login"
	LabelSchedule       = "View schedule"
	LabelAddUser        = "Add user"
	LabelListUsers      = "List users"
	LabelManageMenu     = "Manage menu"
	LabelEditUserMeals  = "Edit user meals"
	LabelMyMeals        = "My meals"
	LabelViewLog        = "Change log"
	LabelBroadcast      = "Broadcast"
	LabelChangePassword = "Change password"
	LabelLogout         = "Logout"
	LabelCancel         = "Cancel"
)

var labels = map[string]command{
	LabelLogin:          cmdLogin,
	LabelSchedule:       cmdSchedule,
	LabelAddUser:        cmdAddUser,
	LabelListUsers:      cmdListUsers,
	LabelManageMenu:     cmdManageMenu,
	LabelEditUserMeals:  cmdEditUserMeals,
	LabelMyMeals:        cmdMyMeals,
	LabelViewLog:        cmdViewLog,
	LabelBroadcast:      cmdBroadcast,
	LabelChangePassword: cmdChangePassword,
	LabelLogout:         cmdLogout,
	LabelCancel:         cmdCancel,
}

var slash = map[string]command{}

func init() {
	for _, c := range []command{
		cmdStart, cmdLogin, cmdSchedule, cmdAddUser, cmdListUsers, cmdManageMenu,
		cmdEditUserMeals, cmdMyMeals, cmdViewLog, cmdBroadcast, cmdChangePassword,
		cmdLogout, cmdCancel,
	} {
		slash["/"+string(c)] = c
	}
}

// parseSlash accepts "/cmd" and "/cmd@botname".
func parseSlash(msg string) (command, bool) {
	if !strings.HasPrefix(msg, "/") {
		return "", false
	}
	word, _, _ := strings.Cut(msg, " ")
	word, _, _ = strings.Cut(word, "@")
	c, ok := slash[strings.ToLower(word)]
	return c, ok
}

var (
	guestKeyboard = [][]string{
		{LabelLogin},
		{LabelSchedule},
	}
	standardKeyboard = [][]string{
		{LabelMyMeals},
		{LabelSchedule},
		{LabelChangePassword, LabelLogout},
	}
	adminKeyboard = [][]string{
		{LabelAddUser, LabelListUsers},
		{LabelManageMenu, LabelEditUserMeals},
		{LabelMyMeals, LabelSchedule},
		{LabelViewLog, LabelBroadcast},
		{LabelChangePassword, LabelLogout},
	}
)

func keyboardFor(sess *Session) [][]string {
	switch {
	case sess == nil || sess.Principal == nil:
		return guestKeyboard
	case sess.Principal.IsAdmin():
		return adminKeyboard
	default:
		return standardKeyboard
	}
}

func (e *Engine) menu(sess *Session, msg string) Response {
	return Response{Text: msg, Keyboard: keyboardFor(sess)}
}

// deny answers a gated trigger without touching the session.
func (e *Engine) deny(sess *Session, err error) (Response, error) {
	e.prom.CountChatEvent("gate", string(apperr.KindOf(err)))
	return e.menu(sess, apperr.Message(err)), nil
}

func (e *Engine) run(ctx context.Context, h *Handle, cmd command) (Response, error) {
	sess := h.Session()

	switch cmd {
	case cmdStart:
		if sess.inFlow() {
			sess.end()
		}
		if sess != nil && sess.Principal != nil {
			return e.menu(sess, "Hello "+sess.Principal.FullName+", choose an option:"), nil
		}
		return e.menu(sess, "Welcome to the meal planner. Please log in to choose your meals."), nil

	case cmdCancel:
		if !sess.inFlow() {
			return e.menu(sess, "Nothing to cancel."), nil
		}
		sess.end()
		return e.menu(sess, "Cancelled."), nil

	case cmdLogout:
		h.Evict()
		return e.menu(nil, "You have been logged out."), nil

	case cmdSchedule:
		return e.schedule(ctx, sess)

	case cmdLogin:
		sess = h.Create()
		sess.start(FlowLogin, StateLoginUsername)
		return e.render(ctx, sess)
	}

	// everything below needs a login
	if err := requireLogin(sess); err != nil {
		return e.deny(sess, err)
	}

	switch cmd {
	case cmdMyMeals:
		sess.start(FlowAssign, StateAssignWeek)
		sess.Target = sess.Principal.Username
		return e.render(ctx, sess)

	case cmdChangePassword:
		sess.start(FlowChangePassword, StatePasswordCurrent)
		return e.render(ctx, sess)
	}

	if err := requireAdmin(sess); err != nil {
		return e.deny(sess, err)
	}

	switch cmd {
	case cmdListUsers:
		return e.listUsers(ctx, sess)
	case cmdViewLog:
		return e.viewLog(ctx, sess)
	case cmdAddUser:
		sess.start(FlowAddUser, StateAddUsername)
	case cmdManageMenu:
		sess.start(FlowEditCatalog, StateCatalogWeek)
	case cmdEditUserMeals:
		sess.start(FlowAssign, StateAssignUser)
	case cmdBroadcast:
		sess.start(FlowBroadcast, StateBroadcastMessage)
	default:
		return e.menu(sess, "Unknown command."), nil
	}
	return e.render(ctx, sess)
}

func (e *Engine) schedule(ctx context.Context, sess *Session) (Response, error) {
	g, err := e.planner.Snapshot(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: report.Schedule(g.Records()), Keyboard: keyboardFor(sess)}, nil
}

func (e *Engine) listUsers(ctx context.Context, sess *Session) (Response, error) {
	users, err := e.identity.ListUsers(ctx)
	if err != nil {
		return Response{}, err
	}

	var b strings.Builder
	b.WriteString("Users\n\n")
	for _, u := range users {
		role := "user"
		if u.IsAdmin() {
			role = "admin"
		}
		status := "not logged in yet"
		if u.Linked() {
			status = "connected"
		}
		if !u.Active {
			status = "deactivated"
		}
		fmt.Fprintf(&b, "%s (%s)\n   username: %s\n   status: %s\n\n", u.FullName, role, u.Username, status)
	}
	return Response{Text: strings.TrimRight(b.String(), "\n"), Keyboard: keyboardFor(sess)}, nil
}

func (e *Engine) viewLog(ctx context.Context, sess *Session) (Response, error) {
	log, err := e.planner.AuditLog(ctx)
	if err != nil {
		return Response{}, err
	}
	msg, doc := report.Audit(log, e.cfg.AuditInlineMax)
	return Response{Text: msg, Document: doc, Keyboard: keyboardFor(sess)}, nil
}
