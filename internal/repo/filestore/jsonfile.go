// Package filestore keeps users, the catalog and reservations in JSON files.
// Every call re-reads the file under the store mutex; writes replace the
// file atomically. Only one process may own a data directory.
package filestore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/geocoder89/mealplanner/internal/fsutil"
	"github.com/geocoder89/mealplanner/internal/observability"
)

type jsonFile[T any] struct {
	mu   sync.Mutex
	path string
	zero func() T
	prom *observability.Prom
}

func newJSONFile[T any](path string, zero func() T, prom *observability.Prom) *jsonFile[T] {
	return &jsonFile[T]{path: path, zero: zero, prom: prom}
}

func (f *jsonFile[T]) load() (T, error) {
	v := f.zero()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return v, err
	}
	if len(b) == 0 {
		return v, nil
	}

	err = json.Unmarshal(b, &v)
	return v, err
}

func (f *jsonFile[T]) view(op string, fn func(T) error) error {
	return f.prom.ObserveStore(op, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()

		v, err := f.load()
		if err != nil {
			return err
		}
		return fn(v)
	})
}

// update applies fn to a fresh copy and persists it when fn succeeds.
func (f *jsonFile[T]) update(op string, fn func(*T) error) error {
	return f.prom.ObserveStore(op, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()

		v, err := f.load()
		if err != nil {
			return err
		}

		if err := fn(&v); err != nil {
			return err
		}

		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		return fsutil.WriteFileAtomic(f.path, b, 0o600)
	})
}
