package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/selection"
	"mealsync/internal/domain/store"
	"mealsync/internal/infra/memstore"
)

var testNow = time.Date(2025, time.June, 9, 12, 0, 0, 0, time.UTC)

func testClock() calendar.Clock { return calendar.FixedClock(testNow) }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// recordingWriter wraps a writer, records every batch and can fail chosen
// calls (1-based).
type recordingWriter struct {
	inner  store.Writer
	mu     sync.Mutex
	sizes  []int
	ops    []store.Op
	failOn map[int]error
}

func newRecordingWriter(inner store.Writer) *recordingWriter {
	return &recordingWriter{inner: inner, failOn: map[int]error{}}
}

func (w *recordingWriter) WriteBatch(ctx context.Context, ops []store.Op) error {
	w.mu.Lock()
	call := len(w.sizes) + 1
	w.sizes = append(w.sizes, len(ops))
	err := w.failOn[call]
	w.mu.Unlock()
	if err != nil {
		return err
	}
	if err := w.inner.WriteBatch(ctx, ops); err != nil {
		return err
	}
	w.mu.Lock()
	w.ops = append(w.ops, ops...)
	w.mu.Unlock()
	return nil
}

func (w *recordingWriter) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sizes)
}

func (w *recordingWriter) committedOps() []store.Op {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]store.Op(nil), w.ops...)
}

// failingSelections fails every read.
type failingSelections struct {
	selection.Repository
	err error
}

func (f failingSelections) ListByDate(context.Context, civil.Date) ([]*selection.Selection, error) {
	return nil, f.err
}

func (f failingSelections) ListRange(context.Context, calendar.Range) ([]*selection.Selection, error) {
	return nil, f.err
}

func seedMenu(t *testing.T, s *memstore.Store, date civil.Date, items ...string) {
	t.Helper()
	require.NoError(t, s.Menus().Save(context.Background(), &menu.Menu{Date: date, AvailableItems: items}))
}

func seedSelection(t *testing.T, s *memstore.Store, userID string, date civil.Date, items ...string) {
	t.Helper()
	require.NoError(t, s.Selections().Save(context.Background(), &selection.Selection{
		UserID: userID,
		Date:   date,
		Items:  selection.ItemsOf(items...),
	}))
}

func seedMalformed(t *testing.T, s *memstore.Store, userID string, date civil.Date) {
	t.Helper()
	require.NoError(t, s.Selections().Save(context.Background(), &selection.Selection{
		UserID: userID,
		Date:   date,
	}))
}

func itemsOf(t *testing.T, s *memstore.Store, userID string, date civil.Date) []string {
	t.Helper()
	sel, err := s.Selections().Get(context.Background(), userID, date)
	require.NoError(t, err)
	return sel.Items.Names
}
