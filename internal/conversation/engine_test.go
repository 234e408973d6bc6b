package conversation_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/mealplanner/internal/audit"
	"github.com/geocoder89/mealplanner/internal/catalog"
	"github.com/geocoder89/mealplanner/internal/conversation"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/identity"
	"github.com/geocoder89/mealplanner/internal/lock"
	"github.com/geocoder89/mealplanner/internal/notifications"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/planner"
	"github.com/geocoder89/mealplanner/internal/repo/filestore"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"github.com/stretchr/testify/require"
)

const (
	adminChat int64 = 100
	janeChat  int64 = 200
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Message
}

func (n *recordingNotifier) Send(ctx context.Context, msg notifications.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []notifications.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Message(nil), n.sent...)
}

type harness struct {
	t        *testing.T
	dir      string
	sheet    *sheet.Sheet
	engine   *conversation.Engine
	sessions *conversation.Sessions
	notifier *recordingNotifier
	planner  *planner.Store
	catalog  *catalog.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	log := observability.NopLogger()

	reg := identity.NewRegistry(filestore.NewUsersRepo(dir, nil), log)
	_, err := reg.EnsureAdmin(ctx, "admin", "System admin", "admin123")
	require.NoError(t, err)

	sh, err := sheet.Open(ctx, sheet.Options{
		Path:   filepath.Join(dir, "meal_plan.csv"),
		Secret: "test",
		Locker: lock.NewLocal(),
		Log:    log,
	})
	require.NoError(t, err)

	al, err := audit.Open(filepath.Join(dir, "change_log.txt"), nil)
	require.NoError(t, err)

	cat := catalog.NewStore(filestore.NewCatalogRepo(dir, nil), 4, 5, log)
	pl := planner.NewStore(sh, cat, al, log)
	_, err = pl.AddRow(ctx, "System admin")
	require.NoError(t, err)

	n := &recordingNotifier{}
	sessions := conversation.NewSessions(0)
	eng := conversation.NewEngine(reg, cat, pl, n, sessions,
		conversation.Config{Weeks: 4, Days: 5, AuditInlineMax: 3000}, nil, log)

	return &harness{
		t: t, dir: dir, sheet: sh, engine: eng, sessions: sessions,
		notifier: n, planner: pl, catalog: cat,
	}
}

func (h *harness) send(chat int64, msg string) conversation.Response {
	h.t.Helper()
	return h.engine.Handle(context.Background(), conversation.Event{ChatID: chat, Text: msg})
}

// press finds the option whose label contains label and presses it.
func (h *harness) press(chat int64, resp conversation.Response, label string) conversation.Response {
	h.t.Helper()
	for _, o := range resp.Options {
		if strings.Contains(o.Label, label) {
			sel, err := conversation.ParseSelection(o.Token)
			require.NoError(h.t, err)
			return h.engine.Handle(context.Background(), conversation.Event{ChatID: chat, Selection: &sel})
		}
	}
	h.t.Fatalf("no option %q in %+v", label, resp.Options)
	return conversation.Response{}
}

func (h *harness) login(chat int64, username, password string) conversation.Response {
	h.t.Helper()
	h.send(chat, conversation.LabelLogin)
	h.send(chat, username)
	return h.send(chat, password)
}

func (h *harness) addUser(username, fullName, password string) {
	h.t.Helper()
	h.send(adminChat, conversation.LabelAddUser)
	h.send(adminChat, username)
	h.send(adminChat, fullName)
	r := h.send(adminChat, password)
	require.Contains(h.t, r.Text, "has been created")
}

func (h *harness) addMeal(week int, day string, name string) {
	h.t.Helper()
	r := h.send(adminChat, conversation.LabelManageMenu)
	r = h.press(adminChat, r, "Week "+string(rune('0'+week)))
	h.press(adminChat, r, day)
	r = h.send(adminChat, "meal: "+name)
	require.Contains(h.t, r.Text, "Added meal")
	h.send(adminChat, "/cancel")
}

// files returns the content of every store file.
func (h *harness) files() map[string][]byte {
	h.t.Helper()
	out := map[string][]byte{}
	entries, err := os.ReadDir(h.dir)
	require.NoError(h.t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(h.dir, e.Name()))
		require.NoError(h.t, err)
		out[e.Name()] = b
	}
	return out
}

func TestScenarioA_ThroughConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.login(adminChat, "admin", "admin123")
	require.Contains(t, r.Text, "Welcome System admin")

	h.addMeal(1, "Saturday", "Rice")
	h.addUser("jane", "Jane Doe", "pass1")

	r = h.login(janeChat, "jane", "pass1")
	require.Contains(t, r.Text, "Welcome Jane Doe")

	r = h.send(janeChat, conversation.LabelMyMeals)
	r = h.press(janeChat, r, "Week 1")
	r = h.press(janeChat, r, "Saturday")
	r = h.press(janeChat, r, "Rice")
	require.Contains(t, r.Text, "Saved: meal = Rice")

	got, err := h.planner.Get(ctx, menu.Slot{Week: 1, Day: 1}, "Jane Doe")
	require.NoError(t, err)
	require.Equal(t, "Rice", got.Meal)
	require.Empty(t, got.Dessert)

	// the current value is marked on re-render
	var marked bool
	for _, o := range r.Options {
		marked = marked || o.Label == "✓ Rice"
	}
	require.True(t, marked)

	log, err := h.planner.AuditLog(ctx)
	require.NoError(t, err)
	require.Contains(t, log, "User: Jane Doe\n")
}

func TestScenarioB_AdminEditsUserMeals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.login(adminChat, "admin", "admin123")
	h.addMeal(2, "Monday", "Pasta")
	h.addUser("jane", "Jane Doe", "pass1")

	r := h.send(adminChat, conversation.LabelEditUserMeals)
	r = h.press(adminChat, r, "Jane Doe (jane)")
	require.Contains(t, r.Text, "Jane Doe")
	r = h.press(adminChat, r, "Week 2")
	r = h.press(adminChat, r, "Monday")
	r = h.press(adminChat, r, "Pasta")
	require.Contains(t, r.Text, "Saved")

	got, err := h.planner.Get(ctx, menu.Slot{Week: 2, Day: 3}, "Jane Doe")
	require.NoError(t, err)
	require.Equal(t, "Pasta", got.Meal)

	log, err := h.planner.AuditLog(ctx)
	require.NoError(t, err)
	require.Contains(t, log, "User: System admin (edit for Jane Doe)")
}

func TestAdminTriggers_RejectedForStandardUser(t *testing.T) {
	h := newHarness(t)

	h.login(adminChat, "admin", "admin123")
	h.addUser("jane", "Jane Doe", "pass1")
	h.login(janeChat, "jane", "pass1")

	before := h.files()
	for _, label := range []string{
		conversation.LabelAddUser,
		conversation.LabelManageMenu,
		conversation.LabelEditUserMeals,
		conversation.LabelBroadcast,
		conversation.LabelViewLog,
		conversation.LabelListUsers,
		"/adduser",
	} {
		r := h.send(janeChat, label)
		require.Equal(t, "admin role required", r.Text, label)
		require.Empty(t, r.Options, label)
	}

	// any free text is now just noise, no flow was started
	r := h.send(janeChat, "meal: Cake")
	require.Equal(t, "Please choose an option from the menu.", r.Text)
	require.Equal(t, before, h.files())
	require.Empty(t, h.notifier.messages())
}

func TestAdminTriggers_RejectedWithoutSession(t *testing.T) {
	h := newHarness(t)
	before := h.files()

	r := h.send(janeChat, conversation.LabelAddUser)
	require.Equal(t, "please log in first", r.Text)
	r = h.send(janeChat, "/menu")
	require.Equal(t, "please log in first", r.Text)

	require.Equal(t, 0, h.sessions.Len())
	require.Equal(t, before, h.files())
}

func TestCancel_LeavesStoresUnchanged(t *testing.T) {
	h := newHarness(t)

	h.login(adminChat, "admin", "admin123")
	h.addMeal(1, "Sunday", "Soup")
	before := h.files()

	// add user, cancelled on the last step
	h.send(adminChat, conversation.LabelAddUser)
	h.send(adminChat, "bob")
	r := h.send(adminChat, "Bob Builder")
	r = h.press(adminChat, r, conversation.LabelCancel)
	require.Equal(t, "Cancelled.", r.Text)

	// catalog deletion list, cancelled with the label
	r = h.send(adminChat, conversation.LabelManageMenu)
	r = h.press(adminChat, r, "Week 1")
	r = h.press(adminChat, r, "Sunday")
	h.press(adminChat, r, "Delete a meal")
	r = h.send(adminChat, conversation.LabelCancel)
	require.Equal(t, "Cancelled.", r.Text)

	// password change, cancelled mid-way
	h.send(adminChat, conversation.LabelChangePassword)
	h.send(adminChat, "admin123")
	h.send(adminChat, "newpass")
	r = h.send(adminChat, "/cancel")
	require.Equal(t, "Cancelled.", r.Text)

	require.Equal(t, before, h.files())

	r = h.login(janeChat, "admin", "admin123")
	require.Contains(t, r.Text, "Welcome")
}

func TestPasswords_NeverEchoedAndDeleted(t *testing.T) {
	h := newHarness(t)

	r := h.login(adminChat, "admin", "wrong-secret")
	require.True(t, r.DeleteInbound)
	require.NotContains(t, r.Text, "wrong-secret")
	require.Equal(t, "username or password is incorrect", r.Text)
	require.Equal(t, 0, h.sessions.Len())

	r = h.login(adminChat, "admin", "admin123")
	require.True(t, r.DeleteInbound)

	h.send(adminChat, conversation.LabelChangePassword)
	r = h.send(adminChat, "admin123")
	require.True(t, r.DeleteInbound)
	r = h.send(adminChat, "abcd")
	require.True(t, r.DeleteInbound)
	r = h.send(adminChat, "abce")
	require.True(t, r.DeleteInbound)
	require.Contains(t, r.Text, "the passwords do not match")
	require.NotContains(t, r.Text, "abc")

	h.send(adminChat, "abcd")
	r = h.send(adminChat, "abcd")
	require.Equal(t, "Your password has been changed.", r.Text)

	h.send(adminChat, conversation.LabelLogout)
	r = h.login(adminChat, "admin", "abcd")
	require.Contains(t, r.Text, "Welcome")
}

func TestAddUser_ValidationReprompts(t *testing.T) {
	h := newHarness(t)
	h.login(adminChat, "admin", "admin123")

	h.send(adminChat, conversation.LabelAddUser)

	r := h.send(adminChat, "ab")
	require.Contains(t, r.Text, "username must be at least 3 characters")
	require.Contains(t, r.Text, "Enter the new user's username")

	r = h.send(adminChat, "admin")
	require.Contains(t, r.Text, "username already taken")

	// a menu label is data while a field is awaited
	r = h.send(adminChat, "Logout")
	require.Contains(t, r.Text, "full name")

	h.send(adminChat, "Log Out")
	r = h.send(adminChat, "123")
	require.Contains(t, r.Text, "password must be at least 4 characters")

	r = h.send(adminChat, "1234")
	require.Contains(t, r.Text, "has been created")

	g, err := h.planner.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"System admin", "Log Out"}, g.Names())
}

func TestCatalogDeletion_StaleButtonReprompts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(adminChat, "admin", "admin123")

	slot := menu.Slot{Week: 3, Day: 2}
	_, err := h.catalog.AddOption(ctx, slot, menu.KindMeal, "A")
	require.NoError(t, err)
	_, err = h.catalog.AddOption(ctx, slot, menu.KindMeal, "B")
	require.NoError(t, err)

	r := h.send(adminChat, conversation.LabelManageMenu)
	r = h.press(adminChat, r, "Week 3")
	r = h.press(adminChat, r, "Sunday")
	list := h.press(adminChat, r, "Delete a meal")

	// someone else removes A, B shifts to index 0
	_, err = h.catalog.RemoveOption(ctx, slot, menu.KindMeal, 0)
	require.NoError(t, err)

	r = h.press(adminChat, list, "Remove B")
	require.Contains(t, r.Text, "no longer at this position")
	require.Len(t, r.Options, 2) // Remove B, Back

	r = h.press(adminChat, r, "Remove B")
	require.Contains(t, r.Text, `Removed meal "B"`)

	day, err := h.catalog.ListOptions(ctx, slot)
	require.NoError(t, err)
	require.Empty(t, day.Meals)
}

func TestStorageFailure_AlertsAdmins(t *testing.T) {
	h := newHarness(t)
	h.login(adminChat, "admin", "admin123")
	h.addMeal(1, "Saturday", "Rice")
	h.addUser("jane", "Jane Doe", "pass1")
	h.login(janeChat, "jane", "pass1")

	r := h.send(janeChat, conversation.LabelMyMeals)
	r = h.press(janeChat, r, "Week 1")
	r = h.press(janeChat, r, "Saturday")

	require.NoError(t, os.Chmod(h.sheet.Path(), 0o644))
	require.NoError(t, os.WriteFile(h.sheet.Path(), []byte("#seal:00\nFull name\n"), 0o644))

	r = h.press(janeChat, r, "Rice")
	require.Equal(t, "Something went wrong while saving your change. Please contact an administrator.", r.Text)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, adminChat, msgs[0].ChatID)
	require.Contains(t, msgs[0].Text, "Storage error")

	// flow ended, the old buttons are stale now
	sel, err := conversation.ParseSelection(conversation.Selection{Kind: conversation.SelectDone}.Token())
	require.NoError(t, err)
	r = h.engine.Handle(context.Background(), conversation.Event{ChatID: janeChat, Selection: &sel})
	require.True(t, r.Ignored)
}

func TestViewLogAndSchedule(t *testing.T) {
	h := newHarness(t)
	h.login(adminChat, "admin", "admin123")

	r := h.send(adminChat, conversation.LabelViewLog)
	require.Nil(t, r.Document)
	require.Contains(t, r.Text, "Meal plan change log")

	r = h.send(janeChat, conversation.LabelSchedule)
	require.Contains(t, r.Text, "Full name")
	require.Contains(t, r.Text, "System admin")
}

func TestBroadcast(t *testing.T) {
	h := newHarness(t)
	h.login(adminChat, "admin", "admin123")
	h.addUser("jane", "Jane Doe", "pass1")
	h.login(janeChat, "jane", "pass1")

	h.send(adminChat, conversation.LabelBroadcast)
	r := h.send(adminChat, "Lunch moves to 1pm")
	require.Contains(t, r.Text, "Lunch moves to 1pm")
	r = h.press(adminChat, r, "Send")
	require.Equal(t, "Message sent to 1 users.", r.Text)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, janeChat, msgs[0].ChatID)
}

func TestSessions_TTL(t *testing.T) {
	s := conversation.NewSessions(time.Minute)

	h := s.Acquire(1)
	h.Create()
	h.Release()
	require.Equal(t, 1, s.Len())

	require.Equal(t, 0, s.Sweep())
	require.Equal(t, 1, s.Len())

	s = conversation.NewSessions(time.Nanosecond)
	h = s.Acquire(1)
	h.Create()
	h.Release()
	time.Sleep(time.Millisecond)

	h = s.Acquire(1)
	require.Nil(t, h.Session())
	h.Release()
	require.Equal(t, 0, s.Len())
}

func TestAddUser_TakenFullNameReprompts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(adminChat, "admin", "admin123")
	h.addUser("ali1", "Ali", "pass1")

	h.send(adminChat, conversation.LabelAddUser)
	h.send(adminChat, "ali2")
	r := h.send(adminChat, "ali")
	require.Contains(t, r.Text, "another user already has this full name")
	require.Contains(t, r.Text, "Enter the user's full name")

	r = h.send(adminChat, "Ali Two")
	require.Contains(t, r.Text, "at least 4")
	r = h.send(adminChat, "pass2")
	require.Contains(t, r.Text, "has been created")

	g, err := h.planner.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"System admin", "Ali", "Ali Two"}, g.Names())
}

func TestChangePassword_OverlongNewPasswordRepromptsNewStep(t *testing.T) {
	h := newHarness(t)
	h.login(adminChat, "admin", "admin123")

	h.send(adminChat, conversation.LabelChangePassword)
	h.send(adminChat, "admin123")

	r := h.send(adminChat, strings.Repeat("x", 80))
	require.True(t, r.DeleteInbound)
	require.Contains(t, r.Text, "password must be at most 72 bytes")
	require.Contains(t, r.Text, "Enter the new password (at least 4 characters)")

	h.send(adminChat, "abcd")
	r = h.send(adminChat, "abcd")
	require.Equal(t, "Your password has been changed.", r.Text)
}
