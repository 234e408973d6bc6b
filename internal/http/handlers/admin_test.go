package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/http/handlers"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"github.com/gin-gonic/gin"
)

type fakeUsers struct {
	users   []user.User
	created []user.CreateUserRequest
	active  map[string]bool
}

func (f *fakeUsers) CreateUser(_ context.Context, req user.CreateUserRequest) (user.User, error) {
	for _, u := range f.users {
		if u.Username == req.Username {
			return user.User{}, user.ErrDuplicateUsername
		}
	}
	f.created = append(f.created, req)
	u := user.NewFromCreateRequest(req)
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeUsers) ListUsers(context.Context) ([]user.User, error) { return f.users, nil }

func (f *fakeUsers) SetActive(_ context.Context, username string, active bool) error {
	for _, u := range f.users {
		if u.Username == username {
			if f.active == nil {
				f.active = map[string]bool{}
			}
			f.active[username] = active
			return nil
		}
	}
	return user.ErrNotFound
}

type fakePlan struct {
	rows []string
	log  string
}

func (f *fakePlan) Snapshot(context.Context) (*sheet.Grid, error) { return nil, nil }

func (f *fakePlan) AddRow(_ context.Context, name string) (bool, error) {
	f.rows = append(f.rows, name)
	return true, nil
}

func (f *fakePlan) AuditLog(context.Context) (string, error) { return f.log, nil }

func adminRouter(users *fakeUsers, p *fakePlan) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	mw := middlewares.NewAuthMiddleware(fakeVerifier{})
	h := handlers.NewAdminHandler(users, p, slog.New(slog.NewTextHandler(io.Discard, nil)))

	admin := r.Group("/admin", mw.RequireAuth(), mw.RequireRole("admin"))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.PATCH("/users/:username", h.SetActive)
	admin.GET("/audit", h.AuditLog)
	return r
}

func TestAdmin_StandardUserIsForbiddenWithoutSideEffects(t *testing.T) {
	users := &fakeUsers{}
	p := &fakePlan{}
	r := adminRouter(users, p)

	w := do(r, http.MethodPost, "/admin/users", "u1:standard", `{"username":"bob","fullName":"Bob","password":"secret"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403, body=%s", w.Code, w.Body.String())
	}
	if len(users.created) != 0 || len(p.rows) != 0 {
		t.Fatalf("forbidden request must not mutate anything")
	}
}

func TestAdmin_CreateUserAddsPlanRow(t *testing.T) {
	users := &fakeUsers{}
	p := &fakePlan{}
	r := adminRouter(users, p)

	w := do(r, http.MethodPost, "/admin/users", "u2:admin", `{"username":"bob","fullName":"Bob Stone","password":"secret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Fatalf("password leaked in response: %s", w.Body.String())
	}
	if len(p.rows) != 1 || p.rows[0] != "Bob Stone" {
		t.Fatalf("expected a plan row for Bob Stone, got %v", p.rows)
	}

	w = do(r, http.MethodPost, "/admin/users", "u2:admin", `{"username":"bob","fullName":"Other Bob","password":"secret"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: got status %d, want 409", w.Code)
	}
	if len(p.rows) != 1 {
		t.Fatalf("duplicate must not add a row")
	}
}

func TestAdmin_ListAndDeactivate(t *testing.T) {
	users := &fakeUsers{}
	_, _ = users.CreateUser(context.Background(), user.CreateUserRequest{Username: "bob", FullName: "Bob", Role: user.RoleStandard})
	r := adminRouter(users, &fakePlan{log: "Meal plan change log\n"})

	w := do(r, http.MethodGet, "/admin/users", "u2:admin", "")
	var list struct {
		Items []handlers.UserView `json:"items"`
		Count int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Items[0].Username != "bob" || list.Items[0].Connected {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = do(r, http.MethodPatch, "/admin/users/bob", "u2:admin", `{"active":false}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("deactivate: got status %d, body=%s", w.Code, w.Body.String())
	}
	if active, ok := users.active["bob"]; !ok || active {
		t.Fatalf("expected bob deactivated, got %v", users.active)
	}

	w = do(r, http.MethodPatch, "/admin/users/ghost", "u2:admin", `{"active":false}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: got status %d, want 404", w.Code)
	}

	w = do(r, http.MethodGet, "/admin/audit", "u2:admin", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "Meal plan change log") {
		t.Fatalf("audit: got %d %q", w.Code, w.Body.String())
	}
}
