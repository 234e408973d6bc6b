package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/geocoder89/mealplanner/internal/lock"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/sheet"
	"github.com/stretchr/testify/require"
)

type sheetSource struct {
	sh  *sheet.Sheet
	log string
}

func (s sheetSource) Snapshot(ctx context.Context) (*sheet.Grid, error) { return s.sh.Read(ctx) }
func (s sheetSource) AuditLog(context.Context) (string, error)          { return s.log, nil }

func newSource(t *testing.T) sheetSource {
	t.Helper()

	sh, err := sheet.Open(context.Background(), sheet.Options{
		Path:   filepath.Join(t.TempDir(), "meal_plan.csv"),
		Secret: "test-secret",
		Layout: sheet.DefaultLayout(),
		Locker: lock.NewLocal(),
		Log:    observability.NopLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, sh.WithExclusiveAccess(context.Background(), func(g *sheet.Grid) error {
		g.AppendRow("Alice")
		return nil
	}))
	return sheetSource{sh: sh, log: "Meal plan change log\n"}
}

func TestExporter_WritesPlanAndLogToFileSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	e := NewExporter(newSource(t), sink, observability.NopLogger())
	e.now = func() time.Time { return time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC) }

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "meal_plan-20260105T093000Z.csv", res.PlanKey)
	require.Equal(t, "meal_plan-20260105T093000Z-change_log.txt", res.AuditKey)

	plan, err := os.ReadFile(filepath.Join(dir, res.PlanKey))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(plan)), "\n")
	require.Len(t, lines, 3) // two header rows and Alice
	require.True(t, strings.HasPrefix(lines[2], "Alice,"))
	require.NotContains(t, string(plan), "#seal:")

	log, err := os.ReadFile(filepath.Join(dir, res.AuditKey))
	require.NoError(t, err)
	require.Equal(t, "Meal plan change log\n", string(log))
}

func TestFileSink_RejectsPaths(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	require.Error(t, sink.Put(context.Background(), "../escape.csv", "text/csv", nil))
}

type fakePutter struct {
	keys []string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Sink_PrefixesKeys(t *testing.T) {
	p := &fakePutter{}
	sink := &S3Sink{client: p, bucket: "plans", prefix: "exports"}

	e := NewExporter(newSource(t), sink, observability.NopLogger())
	e.now = func() time.Time { return time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC) }

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"plans/exports/meal_plan-20260105T093000Z.csv",
		"plans/exports/meal_plan-20260105T093000Z-change_log.txt",
	}, p.keys)

	p.err = errors.New("access denied")
	_, err = e.Run(context.Background())
	require.ErrorContains(t, err, "access denied")
}
