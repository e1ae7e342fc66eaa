package store

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// recorder is a Listener that keeps every notification it receives.
type recorder struct {
	mu      sync.Mutex
	changes []change
}

type change struct {
	entity string
	data   Attributes
}

func (r *recorder) OnChange(entity string, data Attributes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{entity: entity, data: data})
}

func (r *recorder) all() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]change, len(r.changes))
	copy(out, r.changes)
	return out
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start empty
	if len(store.World()) != 0 {
		t.Errorf("World() = %v entities, want 0", len(store.World()))
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %v, want 0", store.Len())
	}
}

func TestMemoryStore_GetUnknownEntity(t *testing.T) {
	store := NewMemoryStore()

	got := store.Get("nobody")
	if got == nil {
		t.Fatal("Get() = nil, want empty map")
	}
	if len(got) != 0 {
		t.Errorf("Get() = %v, want {}", got)
	}
}

func TestMemoryStore_UpdateMerges(t *testing.T) {
	store := NewMemoryStore()

	store.Update("p1", "x", 1)
	store.Update("p1", "y", 2)
	store.Update("p1", "x", 3)

	want := Attributes{"x": 3, "y": 2}
	if got := store.Get("p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestMemoryStore_SetReplaces(t *testing.T) {
	store := NewMemoryStore()

	store.Update("p1", "x", 1)
	store.Set("p1", Attributes{"y": 2})

	want := Attributes{"y": 2}
	if got := store.Get("p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestMemoryStore_SetEmptyAndNil(t *testing.T) {
	store := NewMemoryStore()

	store.Set("empty", Attributes{})
	store.Set("nil", nil)

	for _, entity := range []string{"empty", "nil"} {
		got := store.Get(entity)
		if got == nil || len(got) != 0 {
			t.Errorf("Get(%q) = %v, want {}", entity, got)
		}
	}

	world := store.World()
	if world["nil"] == nil {
		t.Error("World() holds a nil attribute map for an entity set with nil")
	}
	if len(world) != 2 {
		t.Errorf("World() = %v entities, want 2", len(world))
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	rec := &recorder{}
	store.AddListener(rec)

	store.Update("p1", "x", 1)
	store.Set("p2", Attributes{"y": 2})
	store.Clear()

	if got := store.World(); len(got) != 0 {
		t.Errorf("World() after Clear() = %v, want {}", got)
	}

	// clear is silent
	if n := len(rec.all()); n != 2 {
		t.Errorf("listener saw %d changes, want 2 (Clear must not notify)", n)
	}

	// listeners survive clear
	store.Update("p3", "z", 3)
	if n := len(rec.all()); n != 3 {
		t.Errorf("listener saw %d changes after Clear(), want 3", n)
	}
}

func TestMemoryStore_ListenerReceivesFullMap(t *testing.T) {
	store := NewMemoryStore()
	rec := &recorder{}
	store.AddListener(rec)

	store.Update("p1", "x", 1)
	store.Update("p1", "y", 2)
	store.Set("p2", Attributes{"z": 3})

	got := rec.all()
	want := []change{
		{"p1", Attributes{"x": 1}},
		{"p1", Attributes{"x": 1, "y": 2}},
		{"p2", Attributes{"z": 3}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("changes = %v, want %v", got, want)
	}
}

func TestMemoryStore_ListenersInRegistrationOrder(t *testing.T) {
	store := NewMemoryStore()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		store.AddListener(ListenerFunc(func(string, Attributes) {
			order = append(order, name)
		}))
	}

	store.Update("p1", "x", 1)

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("listener order = %v, want %v", order, want)
	}
}

func TestMemoryStore_NilListenerIgnored(t *testing.T) {
	store := NewMemoryStore()
	store.AddListener(nil)

	// must not panic
	store.Update("p1", "x", 1)
}

func TestMemoryStore_ListenerCanRead(t *testing.T) {
	store := NewMemoryStore()

	var seen Attributes
	store.AddListener(ListenerFunc(func(entity string, _ Attributes) {
		seen = store.Get(entity)
	}))

	store.Update("p1", "x", 1)

	if !reflect.DeepEqual(seen, Attributes{"x": 1}) {
		t.Errorf("Get() inside listener = %v, want {x:1}", seen)
	}
}

func TestMemoryStore_ListenerCanReadUnderConcurrentWrites(t *testing.T) {
	store := NewMemoryStore()

	store.AddListener(ListenerFunc(func(entity string, _ Attributes) {
		// widen the window in which other writers queue up
		time.Sleep(time.Millisecond)
		_ = store.Get(entity)
		_ = store.World()
	}))

	const writers = 4
	const writes = 50

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < writes; j++ {
					if j%2 == 0 {
						store.Update("e", "k", j)
					} else {
						store.Set(fmt.Sprintf("w%d", i), Attributes{"n": j})
					}
				}
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent writers blocked while a listener reads the store")
	}

	if got := store.Len(); got != writers+1 {
		t.Errorf("Len() = %d, want %d", got, writers+1)
	}
}

func TestMemoryStore_CopiesAreIsolated(t *testing.T) {
	store := NewMemoryStore()

	input := Attributes{"pos": map[string]any{"x": 1}, "tags": []any{"a"}}
	store.Set("p1", input)

	// mutate caller's map after Set
	input["pos"].(map[string]any)["x"] = 99
	input["new"] = true

	got := store.Get("p1")
	if got["pos"].(map[string]any)["x"] != 1 {
		t.Errorf("store aliased caller's nested map: %v", got)
	}
	if _, ok := got["new"]; ok {
		t.Error("store aliased caller's top-level map")
	}

	// mutate a returned copy
	got["tags"].([]any)[0] = "b"
	if store.Get("p1")["tags"].([]any)[0] != "a" {
		t.Error("Get() returned a slice shared with the store")
	}

	world := store.World()
	world["p1"]["pos"] = "gone"
	if _, ok := store.Get("p1")["pos"].(map[string]any); !ok {
		t.Error("World() returned a map shared with the store")
	}
}

// TestMemoryStore_ConcurrentUpdatesNoLostWrites interleaves writers of
// distinct keys on one entity; every key must survive.
func TestMemoryStore_ConcurrentUpdatesNoLostWrites(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update("shared", fmt.Sprintf("k-%d-%d", id, j), j)
			}
		}(i)
	}

	// concurrent readers
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.World()
				_ = store.Get("shared")
			}
		}()
	}

	wg.Wait()

	if got := len(store.Get("shared")); got != numGoroutines*numUpdates {
		t.Errorf("len(Get()) = %d, want %d", got, numGoroutines*numUpdates)
	}
}

// TestMemoryStore_NotificationOrderMatchesCommitOrder checks that the last
// notification for an entity always carries its final committed state.
func TestMemoryStore_NotificationOrderMatchesCommitOrder(t *testing.T) {
	store := NewMemoryStore()

	var (
		mu   sync.Mutex
		last Attributes
		seen int
	)
	store.AddListener(ListenerFunc(func(_ string, data Attributes) {
		mu.Lock()
		defer mu.Unlock()
		// each notification must carry at least as many keys as the previous
		if len(data) < len(last) {
			t.Errorf("notification went backwards: %d keys after %d", len(data), len(last))
		}
		last = data
		seen++
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Update("e", fmt.Sprintf("%d-%d", id, j), true)
			}
		}(i)
	}
	wg.Wait()

	if seen != 400 {
		t.Errorf("listener saw %d notifications, want 400", seen)
	}
	if !reflect.DeepEqual(last, store.Get("e")) {
		t.Error("last notification does not match final state")
	}
}

func TestMemoryStore_ConcurrentClear(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Set(fmt.Sprintf("e%d", id), Attributes{"j": j})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				store.Clear()
			}
		}()
	}
	wg.Wait()

	store.Clear()
	if store.Len() != 0 {
		t.Errorf("Len() = %d after final Clear(), want 0", store.Len())
	}
}
