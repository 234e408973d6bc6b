// Package sheet stores the assignment grid as a sealed CSV file.
//
// The first line of the file carries an HMAC of the CSV body keyed by the
// shared secret. A file whose seal does not verify is never written back.
// Between writes the file is also left read-only (0444).
package sheet

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/geocoder89/mealplanner/internal/fsutil"
	"github.com/geocoder89/mealplanner/internal/lock"
	"github.com/geocoder89/mealplanner/internal/observability"
)

const (
	sealPrefix    = "#seal:"
	protectedMode = 0o444
	writableMode  = 0o644
)

var ErrTampered = errors.New("sheet seal does not match, file was modified outside the planner")

type Options struct {
	Path   string
	Secret string
	Layout Layout
	Locker lock.Locker
	Prom   *observability.Prom
	Log    *slog.Logger
}

type Sheet struct {
	path    string
	lockKey string
	secret  []byte
	layout  Layout
	locker  lock.Locker
	prom    *observability.Prom
	log     *slog.Logger
}

// Open returns the sheet at opts.Path, creating an empty protected one
// (headers only) if it does not exist yet.
func Open(ctx context.Context, opts Options) (*Sheet, error) {
	if opts.Secret == "" {
		return nil, errors.New("sheet: secret is required")
	}
	if opts.Layout.Weeks <= 0 || opts.Layout.Days <= 0 {
		opts.Layout = DefaultLayout()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, apperr.Storage("sheet.open", err)
	}

	s := &Sheet{
		path:    opts.Path,
		lockKey: "sheet:" + filepath.Base(opts.Path),
		secret:  []byte(opts.Secret),
		layout:  opts.Layout,
		locker:  opts.Locker,
		prom:    opts.Prom,
		log:     opts.Log,
	}

	unlock, err := s.locker.Lock(ctx, s.lockKey)
	if err != nil {
		return nil, apperr.Storage("sheet.open", err)
	}
	defer unlock()

	_, err = os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("creating meal plan sheet", "path", s.path)
		if err := s.save(newGrid(s.layout)); err != nil {
			return nil, apperr.Storage("sheet.create", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, apperr.Storage("sheet.open", err)
	}

	return s, nil
}

func (s *Sheet) Path() string { return s.path }

func (s *Sheet) Layout() Layout { return s.layout }

// Read returns a verified snapshot without taking the lock.
func (s *Sheet) Read(ctx context.Context) (*Grid, error) {
	var g *Grid
	err := s.prom.ObserveStore("sheet.read", func() error {
		var err error
		g, err = s.read()
		return err
	})
	if err != nil {
		return nil, apperr.Storage("sheet.read", err)
	}
	return g, nil
}

// WithExclusiveAccess runs fn against a freshly read grid while holding the
// exclusive lock, then persists the grid if fn succeeded. Protection is
// restored and the lock released on every path, including fn errors and
// panics.
func (s *Sheet) WithExclusiveAccess(ctx context.Context, fn func(*Grid) error) (err error) {
	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, s.lockKey)
	if err != nil {
		return apperr.Storage("sheet.lock", err)
	}
	defer unlock()
	s.prom.ObserveLockWait(s.locker.Backend(), time.Since(waitStart))

	g, err := s.unprotect()
	if err != nil {
		return apperr.Storage("sheet.unprotect", err)
	}

	defer func() {
		if perr := s.protect(); perr != nil {
			s.log.Error("re-protecting sheet failed", "path", s.path, "err", perr)
			if err == nil {
				err = apperr.Storage("sheet.protect", perr)
			}
		}
	}()

	if err = fn(g); err != nil {
		return err
	}

	err = s.prom.ObserveStore("sheet.save", func() error {
		return s.save(g)
	})
	if err != nil {
		return apperr.Storage("sheet.save", err)
	}
	return nil
}

func (s *Sheet) read() (*Grid, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	body, err := s.verify(raw)
	if err != nil {
		return nil, err
	}

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}

	g := newGrid(s.layout)
	if err := g.load(records); err != nil {
		return nil, err
	}
	return g, nil
}

// unprotect verifies the seal, makes the file writable and returns its content.
func (s *Sheet) unprotect() (*Grid, error) {
	g, err := s.read()
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(s.path, writableMode); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Sheet) protect() error {
	return os.Chmod(s.path, protectedMode)
}

func (s *Sheet) save(g *Grid) error {
	var body bytes.Buffer
	w := csv.NewWriter(&body)
	if err := w.WriteAll(g.Records()); err != nil {
		return err
	}

	var out bytes.Buffer
	out.WriteString(sealPrefix)
	out.WriteString(s.seal(body.Bytes()))
	out.WriteByte('\n')
	out.Write(body.Bytes())

	if err := fsutil.WriteFileAtomic(s.path, out.Bytes(), writableMode); err != nil {
		return err
	}
	return s.protect()
}

func (s *Sheet) seal(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Sheet) verify(raw []byte) ([]byte, error) {
	first, body, ok := bytes.Cut(raw, []byte("\n"))
	if !ok || !bytes.HasPrefix(first, []byte(sealPrefix)) {
		return nil, ErrTampered
	}

	got, err := hex.DecodeString(strings.TrimSpace(string(first[len(sealPrefix):])))
	if err != nil {
		return nil, ErrTampered
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return nil, ErrTampered
	}
	return body, nil
}
