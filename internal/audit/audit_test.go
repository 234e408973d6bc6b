package audit_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/mealplanner/internal/audit"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "change_log.txt")

	l, err := audit.Open(path, nil)
	require.NoError(t, err)

	initial, err := l.Read(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(initial, "Meal plan change log\n"))

	at := time.Date(2026, 3, 7, 12, 30, 5, 0, time.UTC)
	require.NoError(t, l.Append(ctx, plan.AuditEntry{
		Actor: "Jane Doe", Slot: menu.Slot{Week: 1, Day: 1}, Kind: menu.KindMeal, Value: "Rice", At: at,
	}))
	require.NoError(t, l.Append(ctx, plan.AuditEntry{
		Actor: "System admin", OnBehalfOf: "Jane Doe", Slot: menu.Slot{Week: 1, Day: 1}, Kind: menu.KindDessert, Value: "Cake", At: at,
	}))

	content, err := l.Read(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(content, initial), "earlier content must be preserved")
	require.Contains(t, content, "User: Jane Doe\nChange: Saturday - week 1, meal = Rice\nTime: 2026/03/07 - 12:30:05\n")
	require.Contains(t, content, "User: System admin (edit for Jane Doe)\n")

	// reopening keeps everything
	again, err := audit.Open(path, nil)
	require.NoError(t, err)
	reread, err := again.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, content, reread)
}

func TestFormat_SelfEditHasNoOnBehalfMarker(t *testing.T) {
	s := audit.Format(plan.AuditEntry{Actor: "Jane", OnBehalfOf: "Jane", At: time.Now()})
	require.NotContains(t, s, "edit for")
}
