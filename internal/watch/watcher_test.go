package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) callback(ctx context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func (r *recorder) wait(t *testing.T, timeout time.Duration) string {
	t.Helper()
	select {
	case p := <-r.ch:
		return p
	case <-time.After(timeout):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func TestWatcher_TriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()

	w, err := New(dir, rec.callback)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	inst := filepath.Join(dir, "probe.py")
	if err := os.WriteFile(inst, []byte("SPEC = None\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got := rec.wait(t, 5*time.Second)
	if got != inst {
		t.Errorf("callback path: got %s, want %s", got, inst)
	}

	stats := w.GetStats()
	if stats.Validations == 0 {
		t.Error("expected at least one validation")
	}
}

func TestWatcher_DebouncesRapidSaves(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()

	w, err := New(dir, rec.callback)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	inst := filepath.Join(dir, "probe.py")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(inst, []byte("SPEC = None\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec.wait(t, 5*time.Second)
	// The burst settles into one callback; allow a short drain window to
	// catch any spurious extras.
	select {
	case <-rec.ch:
		t.Error("rapid saves produced more than one callback")
	case <-time.After(800 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()

	w, err := New(dir, rec.callback)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-rec.ch:
		t.Errorf("unexpected callback for %s", p)
	case <-time.After(800 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), func(context.Context, string) {})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !w.IsWatching() {
		t.Error("expected running watcher")
	}
	w.Stop()
	w.Stop()
	if w.IsWatching() {
		t.Error("expected stopped watcher")
	}
}
