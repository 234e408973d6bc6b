package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/notifications"
	"github.com/geocoder89/mealplanner/internal/planner"
	"github.com/geocoder89/mealplanner/internal/security"
	"github.com/geocoder89/mealplanner/internal/validation"
)

var errUseButtons = apperr.Validation("please use the buttons below")

// advance moves to st and renders it, prefixing note when given.
func (e *Engine) advance(ctx context.Context, sess *Session, st State, note string) (Response, error) {
	sess.State = st
	r, err := e.render(ctx, sess)
	if err != nil {
		return Response{}, err
	}
	if note != "" {
		r.Text = note + "\n\n" + r.Text
	}
	return r, nil
}

func (e *Engine) finish(sess *Session, msg string) (Response, error) {
	sess.end()
	return e.menu(sess, msg), nil
}

func (e *Engine) onText(ctx context.Context, sess *Session, raw string) (Response, error) {
	v := strings.TrimSpace(raw)

	switch sess.State {
	case StateLoginUsername:
		if v == "" {
			return Response{}, apperr.Validation("username is required")
		}
		sess.Fields["username"] = v
		return e.advance(ctx, sess, StateLoginPassword, "")

	case StateLoginPassword:
		u, err := e.identity.Authenticate(ctx, sess.Fields["username"], raw, sess.ChatID)
		if err != nil {
			return Response{}, err
		}
		sess.Principal = &Principal{Username: u.Username, FullName: u.FullName, Role: u.Role}
		return e.finish(sess, "Welcome "+u.FullName+"!")

	case StateAddUsername:
		if err := validation.Var("username", v, "required,alphanum,min=3,max=32"); err != nil {
			return Response{}, err
		}
		_, err := e.identity.Lookup(ctx, v)
		if err == nil {
			return Response{}, user.ErrDuplicateUsername
		}
		if !errors.Is(err, user.ErrNotFound) {
			return Response{}, err
		}
		sess.Fields["username"] = v
		return e.advance(ctx, sess, StateAddFullName, "")

	case StateAddFullName:
		if err := validation.Var("full name", v, "required,max=80"); err != nil {
			return Response{}, err
		}
		if err := e.identity.EnsureFullNameFree(ctx, v); err != nil {
			return Response{}, err
		}
		sess.Fields["full_name"] = v
		return e.advance(ctx, sess, StateAddPassword, "")

	case StateAddPassword:
		return e.createUser(ctx, sess, raw)

	case StateCatalogDayMenu:
		return e.addOption(ctx, sess, v)

	case StatePasswordCurrent:
		if err := e.identity.VerifyPassword(ctx, sess.Principal.Username, raw); err != nil {
			return Response{}, err
		}
		sess.Fields["current"] = raw
		return e.advance(ctx, sess, StatePasswordNew, "")

	case StatePasswordNew:
		if err := checkNewPassword(raw); err != nil {
			return Response{}, err
		}
		sess.Fields["new"] = raw
		return e.advance(ctx, sess, StatePasswordConfirm, "")

	case StatePasswordConfirm:
		if raw != sess.Fields["new"] {
			delete(sess.Fields, "new")
			sess.State = StatePasswordNew
			return Response{}, apperr.Validation("the passwords do not match")
		}
		if err := e.identity.ChangePassword(ctx, sess.Principal.Username, sess.Fields["current"], raw); err != nil {
			return Response{}, err
		}
		return e.finish(sess, "Your password has been changed.")

	case StateBroadcastMessage:
		if err := validation.Var("message", v, "required,max=2000"); err != nil {
			return Response{}, err
		}
		sess.Fields["message"] = v
		return e.advance(ctx, sess, StateBroadcastConfirm, "")
	}

	return Response{}, errUseButtons
}

// checkNewPassword applies the same bounds the hasher does.
func checkNewPassword(raw string) error {
	if err := validation.Var("password", raw, "min=4"); err != nil {
		return err
	}
	if len(raw) > security.MaxPasswordBytes {
		return apperr.Validation("password must be at most %d bytes", security.MaxPasswordBytes)
	}
	return nil
}

func (e *Engine) createUser(ctx context.Context, sess *Session, password string) (Response, error) {
	if err := checkNewPassword(password); err != nil {
		return Response{}, err
	}

	u, err := e.identity.CreateUser(ctx, user.CreateUserRequest{
		Username: sess.Fields["username"],
		FullName: sess.Fields["full_name"],
		Password: password,
		Role:     user.RoleStandard,
	})
	// taken while this flow was waiting
	if errors.Is(err, user.ErrDuplicateUsername) {
		sess.State = StateAddUsername
		return Response{}, err
	}
	if errors.Is(err, user.ErrDuplicateFullName) {
		sess.State = StateAddFullName
		return Response{}, err
	}
	if err != nil {
		return Response{}, err
	}

	if _, err := e.planner.AddRow(ctx, u.FullName); err != nil {
		return Response{}, err
	}

	e.log.InfoContext(ctx, "user added", "by", sess.Principal.Username, "username", u.Username)
	return e.finish(sess, fmt.Sprintf("User %s (%s) has been created.", u.FullName, u.Username))
}

func (e *Engine) addOption(ctx context.Context, sess *Session, v string) (Response, error) {
	prefix, name, ok := strings.Cut(v, ":")
	if !ok {
		return Response{}, apperr.Validation(`send "meal: name" or "dessert: name" to add an option`)
	}
	kind, err := menu.ParseKind(prefix)
	if err != nil {
		return Response{}, err
	}

	opt, err := e.catalog.AddOption(ctx, sess.Slot, kind, name)
	if err != nil {
		return Response{}, err
	}
	return e.advance(ctx, sess, StateCatalogDayMenu, fmt.Sprintf("Added %s %q.", kind, opt.Name))
}

func (e *Engine) onSelection(ctx context.Context, h *Handle, sel Selection) (Response, error) {
	sess := h.Session()

	switch sel.Kind {
	case SelectCancel:
		return e.run(ctx, h, cmdCancel)
	case SelectNoop:
		return ignored(), nil
	}

	if !sess.inFlow() {
		return ignored(), nil
	}
	if err := e.checkFlowAccess(sess); err != nil {
		return Response{}, err
	}

	switch sess.State {
	case StateCatalogWeek:
		if sel.Kind == SelectWeek && e.validWeek(sel.Week) {
			sess.Slot = menu.Slot{Week: sel.Week}
			return e.advance(ctx, sess, StateCatalogDay, "")
		}

	case StateCatalogDay:
		switch {
		case sel.Kind == SelectDay && sel.Week == sess.Slot.Week && e.validDay(sel.Day):
			sess.Slot.Day = sel.Day
			return e.advance(ctx, sess, StateCatalogDayMenu, "")
		case sel.Kind == SelectBack:
			return e.advance(ctx, sess, StateCatalogWeek, "")
		}

	case StateCatalogDayMenu:
		switch {
		case sel.Kind == SelectDelMode && e.sameSlot(sess, sel) && sel.Item.IsValid():
			sess.Kind = sel.Item
			return e.advance(ctx, sess, StateCatalogDeletion, "")
		case sel.Kind == SelectBack:
			return e.advance(ctx, sess, StateCatalogDay, "")
		case sel.Kind == SelectDone:
			return e.finish(sess, "Menu editing finished.")
		}

	case StateCatalogDeletion:
		switch {
		case sel.Kind == SelectDelete && e.sameSlot(sess, sel) && sel.Item == sess.Kind:
			removed, err := e.catalog.RemoveOptionIf(ctx, sess.Slot, sess.Kind, sel.Index, sel.Payload)
			if err != nil {
				return Response{}, err
			}
			return e.advance(ctx, sess, StateCatalogDeletion, fmt.Sprintf("Removed %s %q.", sess.Kind, removed.Name))
		case sel.Kind == SelectBack:
			return e.advance(ctx, sess, StateCatalogDayMenu, "")
		}

	case StateAssignUser:
		if sel.Kind == SelectUser && sel.Payload != "" {
			sess.Target = sel.Payload
			return e.advance(ctx, sess, StateAssignWeek, "")
		}

	case StateAssignWeek:
		switch {
		case sel.Kind == SelectWeek && e.validWeek(sel.Week):
			sess.Slot = menu.Slot{Week: sel.Week}
			return e.advance(ctx, sess, StateAssignDay, "")
		case sel.Kind == SelectDone:
			return e.finish(sess, "Your choices are saved.")
		}

	case StateAssignDay:
		switch {
		case sel.Kind == SelectDay && sel.Week == sess.Slot.Week && e.validDay(sel.Day):
			sess.Slot.Day = sel.Day
			return e.advance(ctx, sess, StateAssignChoices, "")
		case sel.Kind == SelectBack:
			return e.advance(ctx, sess, StateAssignWeek, "")
		}

	case StateAssignChoices:
		switch {
		case sel.Kind == SelectOption && e.sameSlot(sess, sel) && sel.Item.IsValid():
			return e.assign(ctx, sess, sel)
		case sel.Kind == SelectBack:
			return e.advance(ctx, sess, StateAssignDay, "")
		case sel.Kind == SelectDone:
			return e.finish(sess, "Your choices are saved.")
		}

	case StateBroadcastConfirm:
		if sel.Kind == SelectConfirm {
			return e.broadcast(ctx, sess)
		}
	}

	return ignored(), nil
}

func (e *Engine) validWeek(w int) bool { return w >= 1 && w <= e.cfg.Weeks }

func (e *Engine) validDay(d int) bool { return d >= 1 && d <= e.cfg.Days }

// sameSlot rejects presses rendered for a different (week, day).
func (e *Engine) sameSlot(sess *Session, sel Selection) bool {
	return sel.Week == sess.Slot.Week && sel.Day == sess.Slot.Day
}

func (e *Engine) assign(ctx context.Context, sess *Session, sel Selection) (Response, error) {
	target, err := e.resolveTarget(ctx, sess)
	if err != nil {
		return Response{}, err
	}

	got, err := e.planner.Assign(ctx, planner.WriteRequest{
		Actor:    sess.Principal.FullName,
		Target:   target.FullName,
		Slot:     sess.Slot,
		Kind:     sel.Item,
		OptionID: sel.Payload,
	})
	if err != nil {
		return Response{}, err
	}
	return e.advance(ctx, sess, StateAssignChoices, fmt.Sprintf("Saved: %s = %s", sel.Item, got.Get(sel.Item)))
}

func (e *Engine) broadcast(ctx context.Context, sess *Session) (Response, error) {
	users, err := e.identity.ListUsers(ctx)
	if err != nil {
		return Response{}, err
	}

	var chats []int64
	for _, u := range users {
		if u.Active && u.Linked() && *u.ChatID != sess.ChatID {
			chats = append(chats, *u.ChatID)
		}
	}

	msg := sess.Fields["message"]
	res := notifications.Broadcast(ctx, e.notifier, chats, msg)
	e.log.InfoContext(ctx, "broadcast sent", "by", sess.Principal.Username, "sent", res.Sent, "failed", res.Failed)

	out := fmt.Sprintf("Message sent to %d users.", res.Sent)
	if res.Failed > 0 {
		out += fmt.Sprintf(" %d could not be reached.", res.Failed)
	}
	return e.finish(sess, out)
}
