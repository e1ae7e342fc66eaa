package worldsync

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/worldsync/internal/hub"
)

func TestWithChangeCallback_InvokedOnChange(t *testing.T) {
	var got []Change

	ws, err := New(WithChangeCallback(func(c Change) {
		got = append(got, c)
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ws.Update("p1", "x", 1)
	ws.Set("p2", Attributes{"y": 2})

	if len(got) != 2 {
		t.Fatalf("callback invoked %d times, want 2", len(got))
	}
	if got[0].Entity != "p1" || got[0].Attributes["x"] != 1 {
		t.Errorf("first change = %+v, want p1 {x:1}", got[0])
	}
	if got[1].Entity != "p2" || got[1].Attributes["y"] != 2 {
		t.Errorf("second change = %+v, want p2 {y:2}", got[1])
	}
}

func TestWithChangeCallback_ReceivesFullMap(t *testing.T) {
	var last Change

	ws, err := New(WithChangeCallback(func(c Change) { last = c }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ws.Update("p1", "x", 1)
	ws.Update("p1", "y", 2)

	if len(last.Attributes) != 2 || last.Attributes["x"] != 1 || last.Attributes["y"] != 2 {
		t.Errorf("Attributes = %v, want full map {x:1 y:2}", last.Attributes)
	}
}

func TestWithChangeCallback_NotInvokedForSeedOrClear(t *testing.T) {
	calls := 0

	ws, err := New(
		WithEntity("p1", Attributes{"x": 1}),
		WithChangeCallback(func(Change) { calls++ }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ws.Clear()

	if calls != 0 {
		t.Errorf("callback invoked %d times, want 0", calls)
	}
}

func TestWithChangeCallback_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	secondCalled := false

	ws, err := New(
		WithLogger(logger),
		WithChangeCallback(func(Change) { panic("test panic") }),
		WithChangeCallback(func(Change) { secondCalled = true }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sub := register(t, ws)

	ws.Update("p1", "x", 1)

	if !secondCalled {
		t.Error("callback after a panicking one should still run")
	}
	if sub.Len() != 1 {
		t.Errorf("subscriber has %d frames, want 1", sub.Len())
	}
	if !strings.Contains(buf.String(), "change callback panicked") {
		t.Errorf("expected panic to be logged, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "entity=p1") {
		t.Errorf("expected entity in panic log, got: %s", buf.String())
	}

	// the world is still writable after the panic
	ws.Update("p1", "y", 2)
	if got := ws.Get("p1"); got["y"] != 2 {
		t.Errorf("Get(p1) = %v, want y=2", got)
	}
}

func TestWithChangeCallback_NilIsSafe(t *testing.T) {
	ws, err := New(WithChangeCallback(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// should not panic
	ws.Update("p1", "x", 1)
}

func TestWithChangeCallback_NoSharedReferences(t *testing.T) {
	var first, second Change

	ws, err := New(
		WithChangeCallback(func(c Change) {
			first = c
			c.Attributes["x"] = "mutated"
		}),
		WithChangeCallback(func(c Change) { second = c }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sub := register(t, ws)

	ws.Update("p1", "x", 1)

	if first.Attributes["x"] != "mutated" {
		t.Fatal("first callback should own its copy")
	}
	if second.Attributes["x"] != 1 {
		t.Errorf("second callback saw %v, want 1", second.Attributes["x"])
	}
	if got := ws.Get("p1"); got["x"] != 1 {
		t.Errorf("store saw callback mutation: %v", got)
	}
	msg, _ := sub.Next(context.Background())
	if strings.Contains(string(msg), "mutated") {
		t.Errorf("broadcast saw callback mutation: %s", msg)
	}
}

func TestWithChangeCallback_ExecutionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int

	record := func(n int) func(Change) {
		return func(Change) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, n)
		}
	}

	ws, err := New(
		WithChangeCallback(record(1)),
		WithChangeCallback(record(2)),
		WithChangeCallback(record(3)),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ws.Update("p1", "x", 1)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestWithChangeCallback_RunsAfterHub(t *testing.T) {
	var sub *hub.Subscriber
	queued := -1

	ws, err := New(WithChangeCallback(func(Change) {
		queued = sub.Len()
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sub = register(t, ws)

	ws.Update("p1", "x", 1)

	if queued != 1 {
		t.Errorf("queue length inside callback = %d, want frame already queued (1)", queued)
	}
}

func TestWithChangeCallback_CanReadUnderConcurrentWrites(t *testing.T) {
	var ws *WorldSync
	ws, err := New(WithChangeCallback(func(c Change) {
		_ = ws.Get(c.Entity)
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					ws.Update("p1", "x", j)
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("writers blocked while a callback reads the world")
	}
}
