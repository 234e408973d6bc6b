package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/user"
)

var cancelChoice = choice(LabelCancel, Selection{Kind: SelectCancel})

// render builds the prompt of the session's current state from fresh data.
func (e *Engine) render(ctx context.Context, sess *Session) (Response, error) {
	switch sess.State {
	case StateLoginUsername:
		return prompt("Enter your username:"), nil
	case StateLoginPassword:
		return prompt("Now enter your password:"), nil

	case StateAddUsername:
		return prompt("Enter the new user's username (3 to 32 letters or digits):"), nil
	case StateAddFullName:
		return prompt("Enter the user's full name:"), nil
	case StateAddPassword:
		return prompt("Enter a password for the user (at least 4 characters):"), nil

	case StatePasswordCurrent:
		return prompt("Enter your current password:"), nil
	case StatePasswordNew:
		return prompt("Enter the new password (at least 4 characters):"), nil
	case StatePasswordConfirm:
		return prompt("Enter the new password again:"), nil

	case StateBroadcastMessage:
		return prompt("Type the message to send to every user:"), nil
	case StateBroadcastConfirm:
		return Response{
			Text: "Send this message to every user?\n\n" + sess.Fields["message"],
			Options: []Choice{
				choice("Send", Selection{Kind: SelectConfirm}),
				cancelChoice,
			},
		}, nil

	case StateCatalogWeek:
		return e.weekPicker("Manage menu: choose a week", false), nil
	case StateCatalogDay:
		return e.dayPicker(fmt.Sprintf("Week %d: choose a day", sess.Slot.Week), sess.Slot.Week), nil
	case StateCatalogDayMenu:
		return e.renderDayMenu(ctx, sess)
	case StateCatalogDeletion:
		return e.renderDeletion(ctx, sess)

	case StateAssignUser:
		return e.renderUserPicker(ctx)
	case StateAssignWeek:
		target, err := e.resolveTarget(ctx, sess)
		if err != nil {
			return Response{}, err
		}
		return e.weekPicker("Choosing meals for "+target.FullName+": pick a week", true), nil
	case StateAssignDay:
		target, err := e.resolveTarget(ctx, sess)
		if err != nil {
			return Response{}, err
		}
		r := e.dayPicker(fmt.Sprintf("Choosing meals for %s, week %d: pick a day", target.FullName, sess.Slot.Week), sess.Slot.Week)
		return r, nil
	case StateAssignChoices:
		return e.renderChoices(ctx, sess)
	}

	return Response{}, fmt.Errorf("no prompt for state %q", sess.State)
}

func prompt(msg string) Response {
	return Response{Text: msg, Options: []Choice{cancelChoice}}
}

func (e *Engine) weekPicker(title string, withDone bool) Response {
	r := Response{Text: title}
	for w := 1; w <= e.cfg.Weeks; w++ {
		r.Options = append(r.Options, choice("Week "+strconv.Itoa(w), Selection{Kind: SelectWeek, Week: w}))
	}
	if withDone {
		r.Options = append(r.Options, choice("Done", Selection{Kind: SelectDone}))
	}
	r.Options = append(r.Options, cancelChoice)
	return r
}

func (e *Engine) dayPicker(title string, week int) Response {
	r := Response{Text: title}
	for d := 1; d <= e.cfg.Days; d++ {
		r.Options = append(r.Options, choice(menu.DayName(d), Selection{Kind: SelectDay, Week: week, Day: d}))
	}
	r.Options = append(r.Options, choice("Back", Selection{Kind: SelectBack}))
	return r
}

func (e *Engine) renderDayMenu(ctx context.Context, sess *Session) (Response, error) {
	day, err := e.catalog.ListOptions(ctx, sess.Slot)
	if err != nil {
		return Response{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Menu for %s\n\n", sess.Slot)
	writeOptions(&b, "Meals", day.Meals)
	b.WriteString("\n")
	writeOptions(&b, "Desserts", day.Desserts)
	b.WriteString("\nTo add an option send \"meal: name\" or \"dessert: name\".")

	return Response{
		Text: b.String(),
		Options: []Choice{
			choice("Delete a meal", Selection{Kind: SelectDelMode, Week: sess.Slot.Week, Day: sess.Slot.Day, Item: menu.KindMeal}),
			choice("Delete a dessert", Selection{Kind: SelectDelMode, Week: sess.Slot.Week, Day: sess.Slot.Day, Item: menu.KindDessert}),
			choice("Back", Selection{Kind: SelectBack}),
			choice("Done", Selection{Kind: SelectDone}),
		},
	}, nil
}

func writeOptions(b *strings.Builder, title string, opts []menu.Option) {
	b.WriteString(title + ":\n")
	if len(opts) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for i, o := range opts {
		fmt.Fprintf(b, "  %d. %s\n", i+1, o.Name)
	}
}

func (e *Engine) renderDeletion(ctx context.Context, sess *Session) (Response, error) {
	day, err := e.catalog.ListOptions(ctx, sess.Slot)
	if err != nil {
		return Response{}, err
	}

	opts := day.Options(sess.Kind)
	r := Response{Text: fmt.Sprintf("Which %s should be removed from %s?", sess.Kind, sess.Slot)}
	if len(opts) == 0 {
		r.Text = fmt.Sprintf("There is no %s to remove on %s.", sess.Kind, sess.Slot)
	}
	for i, o := range opts {
		r.Options = append(r.Options, choice("Remove "+o.Name, Selection{
			Kind: SelectDelete, Week: sess.Slot.Week, Day: sess.Slot.Day, Item: sess.Kind, Index: i, Payload: o.ID,
		}))
	}
	r.Options = append(r.Options, choice("Back", Selection{Kind: SelectBack}))
	return r, nil
}

func (e *Engine) renderUserPicker(ctx context.Context) (Response, error) {
	users, err := e.identity.ListUsers(ctx)
	if err != nil {
		return Response{}, err
	}

	r := Response{Text: "Whose meals do you want to edit?"}
	for _, u := range users {
		if !u.Active {
			continue
		}
		r.Options = append(r.Options, choice(u.FullName+" ("+u.Username+")", Selection{Kind: SelectUser, Payload: u.Username}))
	}
	r.Options = append(r.Options, cancelChoice)
	return r, nil
}

func (e *Engine) renderChoices(ctx context.Context, sess *Session) (Response, error) {
	target, err := e.resolveTarget(ctx, sess)
	if err != nil {
		return Response{}, err
	}

	day, err := e.catalog.ListOptions(ctx, sess.Slot)
	if err != nil {
		return Response{}, err
	}
	if day.Empty() {
		return Response{}, menu.ErrEmptyMenu
	}

	current, err := e.planner.Get(ctx, sess.Slot, target.FullName)
	if err != nil {
		return Response{}, err
	}

	r := Response{Text: fmt.Sprintf("%s, %s\nMeal: %s\nDessert: %s",
		target.FullName, sess.Slot, orDash(current.Meal), orDash(current.Dessert))}

	for _, kind := range []menu.Kind{menu.KindMeal, menu.KindDessert} {
		opts := day.Options(kind)
		if len(opts) == 0 {
			continue
		}
		r.Options = append(r.Options, choice("-- "+kind.Title()+"s --", Selection{Kind: SelectNoop}))
		for _, o := range opts {
			label := o.Name
			if current.Get(kind) == o.Name {
				label = "✓ " + label
			}
			r.Options = append(r.Options, choice(label, Selection{
				Kind: SelectOption, Week: sess.Slot.Week, Day: sess.Slot.Day, Item: kind, Payload: o.ID,
			}))
		}
	}
	r.Options = append(r.Options,
		choice("Back", Selection{Kind: SelectBack}),
		choice("Done", Selection{Kind: SelectDone}),
	)
	return r, nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// resolveTarget loads the assign flow's target from the registry every time
// it is needed; it is never carried over from an earlier step.
func (e *Engine) resolveTarget(ctx context.Context, sess *Session) (user.User, error) {
	if sess.Target == "" {
		return user.User{}, user.ErrNotFound
	}
	if sess.Target != sess.Principal.Username {
		if err := requireAdmin(sess); err != nil {
			return user.User{}, err
		}
	}

	u, err := e.identity.Lookup(ctx, sess.Target)
	if err != nil {
		return user.User{}, err
	}
	if !u.Active {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}
