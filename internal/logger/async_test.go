package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/memorybridge/internal/config"
)

// gatedHandler records messages. When gate is set, Handle signals entered and
// then blocks until gate is closed.
type gatedHandler struct {
	gate    chan struct{}
	entered chan struct{}

	mu   sync.Mutex
	msgs []string
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{gate: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (h *gatedHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *gatedHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.gate != nil {
		h.entered <- struct{}{}
		<-h.gate
	}
	h.mu.Lock()
	h.msgs = append(h.msgs, rec.Message)
	h.mu.Unlock()
	return nil
}

func (h *gatedHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *gatedHandler) WithGroup(string) slog.Handler      { return h }

func (h *gatedHandler) delivered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

func record(msg string) slog.Record {
	return slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
}

func TestAsyncHandlerDelivers(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		writers   int
		perWriter int
	}{
		{"single record", 1, 1, 1},
		{"one worker many writers", 1, 8, 50},
		{"many workers many writers", 4, 16, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &gatedHandler{}
			total := tt.writers * tt.perWriter
			ah := NewAsyncHandler(inner, total, tt.workers)

			var wg sync.WaitGroup
			for range tt.writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range tt.perWriter {
						if err := ah.Handle(context.Background(), record("memory.search")); err != nil {
							t.Errorf("Handle: %v", err)
						}
					}
				}()
			}
			wg.Wait()
			ah.Close()

			if got := len(inner.delivered()); got != total {
				t.Fatalf("delivered %d records, want %d", got, total)
			}
			if ah.DroppedCount() != 0 {
				t.Fatalf("dropped %d records, want 0", ah.DroppedCount())
			}
		})
	}
}

func TestAsyncHandlerDropsWhenFull(t *testing.T) {
	inner := newGatedHandler()
	ah := NewAsyncHandler(inner, 1, 1)

	_ = ah.Handle(context.Background(), record("first"))
	<-inner.entered // worker holds "first"

	_ = ah.Handle(context.Background(), record("second")) // fills the buffer
	_ = ah.Handle(context.Background(), record("third"))  // dropped

	if got := ah.DroppedCount(); got != 1 {
		t.Fatalf("DroppedCount = %d, want 1", got)
	}

	close(inner.gate)
	ah.Close()

	got := inner.delivered()
	if strings.Join(got, ",") != "first,second" {
		t.Fatalf("delivered %v, want [first second]", got)
	}
}

func TestAsyncHandlerClose(t *testing.T) {
	inner := &gatedHandler{}
	ah := NewAsyncHandler(inner, 10, 2)
	derived := ah.WithAttrs([]slog.Attr{slog.String("workspace_id", "acme")}).WithGroup("gateway")

	for _, msg := range []string{"a", "b", "c"} {
		_ = derived.Handle(context.Background(), record(msg))
	}
	ah.Close()
	ah.Close()

	if got := len(inner.delivered()); got != 3 {
		t.Fatalf("Close flushed %d records, want 3", got)
	}

	// The derived handler shares the closed state.
	_ = derived.Handle(context.Background(), record("late"))
	if got := ah.DroppedCount(); got != 1 {
		t.Fatalf("DroppedCount after close = %d, want 1", got)
	}
	if got := len(inner.delivered()); got != 3 {
		t.Fatalf("late record was delivered")
	}
}

func TestNewWithWriterAsync(t *testing.T) {
	var buf bytes.Buffer
	log, closer := NewWithWriter(&buf, config.Logging{
		Level:   "debug",
		Service: "memorybridge",
		Async:   true,
		Workers: 2,
	})
	log.Debug("graph search", "scope", "edges")
	closer.Close()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "graph search" || entry["service"] != "memorybridge" || entry["scope"] != "edges" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
