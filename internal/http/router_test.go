package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/auth"
	"github.com/geocoder89/mealplanner/internal/config"
	"github.com/geocoder89/mealplanner/internal/conversation"
	httpx "github.com/geocoder89/mealplanner/internal/http"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const chatSecret = "gateway-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Env:            "dev",
		StoreBackend:   "file",
		DataDir:        dir,
		SheetPath:      filepath.Join(dir, "meal_plan.csv"),
		SheetSecret:    "test-secret",
		AuditLogPath:   filepath.Join(dir, "change_log.txt"),
		Weeks:          4,
		Days:           5,
		CycleStart:     time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC),
		AuditInlineMax: 3000,
		LockBackend:    "memory",
		AdminUsername:  "admin",
		AdminPassword:  "admin123",
		AdminName:      "System admin",
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.Bootstrap(ctx))

	r, _ := httpx.NewRouter(httpx.Deps{
		Env:          cfg.Env,
		ServiceName:  "mealplanner-test",
		Log:          observability.NopLogger(),
		Prom:         a.Prom,
		Gatherer:     a.Registry,
		Engine:       a.Engine,
		Identity:     a.Identity,
		Catalog:      a.Catalog,
		Planner:      a.Planner,
		Reservations: a.Reservations,
		JWT:          auth.NewManager("jwt-secret", time.Minute),
		Ready:        a.Ready,
		ChatSecret:   chatSecret,
	})
	return r
}

func postChat(r http.Handler, secret string, chatID int64, text string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]any{"chatId": chatID, "text": text})
	req := httptest.NewRequest(http.MethodPost, "/chat/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(middlewares.ChatSecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatEvents_RequireGatewaySecret(t *testing.T) {
	r := newTestRouter(t)

	for _, text := range []string{"/login", "admin", "admin123"} {
		w := postChat(r, chatSecret, 42, text)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// the admin is now logged in on chat 42; a caller without the secret
	// must not reach that session
	for _, secret := range []string{"", "guess"} {
		w := postChat(r, secret, 42, "/adduser")
		require.Equal(t, http.StatusUnauthorized, w.Code, "secret %q", secret)
		require.NotContains(t, w.Body.String(), "username")
	}

	w := postChat(r, chatSecret, 42, "/adduser")
	require.Equal(t, http.StatusOK, w.Code)

	var resp conversation.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Ignored)
	require.NotEmpty(t, resp.Text)
}
