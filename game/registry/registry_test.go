package registry

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/roomgate/game/room"
)

func createTestConfig() room.Config {
	return room.Config{
		Title:          "Friday Night",
		GameMode:       "deathmatch",
		MaxPlayerCount: 2,
		IsPublicGame:   true,
	}
}

// repeatReader replays the same bytes forever
type repeatReader struct {
	data []byte
	pos  int
}

func (r *repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.data[r.pos%len(r.data)]
		r.pos++
	}
	return len(p), nil
}

func TestIDGenerator_Generate(t *testing.T) {
	t.Run("code shape", func(t *testing.T) {
		g := NewIDGenerator()
		for i := 0; i < 100; i++ {
			id := g.Generate(nil)
			if len(id) != CodeLength {
				t.Fatalf("Expected %d-character code, got %q", CodeLength, id)
			}
			for _, c := range id {
				if !strings.ContainsRune(CodeAlphabet, c) {
					t.Fatalf("Code %q contains character %q outside the alphabet", id, c)
				}
			}
		}
	})

	t.Run("retries on collision", func(t *testing.T) {
		// first six bytes map to AAAAAA, next six to BBBBBB
		src := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1})
		g := NewIDGeneratorFromReader(src)

		attempts := 0
		id := g.Generate(func(id string) bool {
			attempts++
			return id == "AAAAAA"
		})
		if id != "BBBBBB" {
			t.Errorf("Expected BBBBBB after collision, got %s", id)
		}
		if attempts != 2 {
			t.Errorf("Expected 2 attempts, got %d", attempts)
		}
	})

	t.Run("exhausted source panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic when the random source fails")
			}
		}()
		NewIDGeneratorFromReader(io.LimitReader(bytes.NewReader(nil), 0)).Generate(nil)
	})
}

func TestRegistry_Create(t *testing.T) {
	reg := New(nil)

	rm := reg.Create("host-1", createTestConfig())
	if rm == nil {
		t.Fatal("Create returned nil")
	}
	if rm.Status() != room.StatusWaiting {
		t.Errorf("Expected status waiting, got %s", rm.Status())
	}
	if rm.Len() != 0 {
		t.Errorf("Expected empty roster, got %d", rm.Len())
	}
	if rm.Host() != "host-1" {
		t.Errorf("Expected host 'host-1', got '%s'", rm.Host())
	}

	got, ok := reg.Get(rm.ID())
	if !ok || got != rm {
		t.Error("Created room is not retrievable")
	}
}

func TestRegistry_CreateAvoidsLiveIDs(t *testing.T) {
	// a source that always yields the same code until it moves on
	src := &repeatReader{data: []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 2, 2, 2, 2, 2}}
	reg := NewWithGenerator(NewIDGeneratorFromReader(src), nil)

	first := reg.Create("a", createTestConfig())
	second := reg.Create("b", createTestConfig())

	if first.ID() == second.ID() {
		t.Fatalf("Expected distinct ids, both were %s", first.ID())
	}
	if second.ID() != "CCCCCC" {
		t.Errorf("Expected second id CCCCCC, got %s", second.ID())
	}
}

func TestRegistry_IDsPairwiseDistinct(t *testing.T) {
	reg := New(nil)
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rm := reg.Create(room.ConnectionID(fmt.Sprintf("host-%d", i)), createTestConfig())
			mu.Lock()
			defer mu.Unlock()
			if seen[rm.ID()] {
				t.Errorf("Duplicate room id %s", rm.ID())
			}
			seen[rm.ID()] = true
		}(i)
	}
	wg.Wait()

	if reg.Count() != 500 {
		t.Errorf("Expected 500 rooms, got %d", reg.Count())
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := New(nil)

	t.Run("get non-existent room", func(t *testing.T) {
		rm, ok := reg.Get("NOPE42")
		if ok || rm != nil {
			t.Error("Expected absent room")
		}
	})
}

func TestRegistry_Remove(t *testing.T) {
	reg := New(nil)
	rm := reg.Create("host", createTestConfig())

	reg.Remove(rm.ID())
	if _, ok := reg.Get(rm.ID()); ok {
		t.Error("Room should be gone after Remove")
	}

	// removing again is a no-op
	reg.Remove(rm.ID())
	if reg.Count() != 0 {
		t.Errorf("Expected 0 rooms, got %d", reg.Count())
	}
}

func TestRegistry_RemoveConnection(t *testing.T) {
	t.Run("sole player removes room", func(t *testing.T) {
		reg := New(nil)
		rm := reg.Create("alice", createTestConfig())
		rm.Join("alice", "Alice", room.Position{}, time.Now(), nil)

		left := reg.RemoveConnection("alice")
		if len(left) != 1 || left[0] != rm.ID() {
			t.Errorf("Expected to leave [%s], got %v", rm.ID(), left)
		}
		if _, ok := reg.Get(rm.ID()); ok {
			t.Error("Room should be removed once its last player disconnects")
		}
	})

	t.Run("one of several players keeps room", func(t *testing.T) {
		reg := New(nil)
		rm := reg.Create("alice", createTestConfig())
		rm.Join("alice", "Alice", room.Position{}, time.Now(), nil)
		rm.Join("bob", "Bob", room.Position{}, time.Now(), nil)

		reg.RemoveConnection("alice")

		got, ok := reg.Get(rm.ID())
		if !ok {
			t.Fatal("Room should survive while players remain")
		}
		if got.Len() != 1 {
			t.Errorf("Expected roster of 1, got %d", got.Len())
		}
		if got.Players()[0].ID != "bob" {
			t.Errorf("Expected bob to remain, got %s", got.Players()[0].ID)
		}
		if got.Host() != "alice" {
			t.Error("Host identity must not be transferred")
		}
	})

	t.Run("unrelated rooms untouched", func(t *testing.T) {
		reg := New(nil)
		a := reg.Create("alice", createTestConfig())
		a.Join("alice", "Alice", room.Position{}, time.Now(), nil)
		waiting := reg.Create("carol", createTestConfig())

		left := reg.RemoveConnection("bob")
		if len(left) != 0 {
			t.Errorf("Expected no rooms left, got %v", left)
		}
		if reg.Count() != 2 {
			t.Errorf("Expected both rooms to remain, got %d", reg.Count())
		}
		if _, ok := reg.Get(waiting.ID()); !ok {
			t.Error("An unjoined room of another host must survive")
		}
	})

	t.Run("host of unjoined room retires it", func(t *testing.T) {
		reg := New(nil)
		rm := reg.Create("alice", createTestConfig())

		reg.RemoveConnection("alice")
		if _, ok := reg.Get(rm.ID()); ok {
			t.Error("Expected unjoined room to be retired with its host")
		}
		if !rm.Closed() {
			t.Error("Retired room should be closed")
		}
	})
}

func TestRegistry_Leave(t *testing.T) {
	reg := New(nil)
	rm := reg.Create("alice", createTestConfig())
	rm.Join("alice", "Alice", room.Position{}, time.Now(), nil)

	removed, ok := reg.Leave(rm.ID(), "stranger")
	if removed || !ok {
		t.Errorf("Expected removed=false ok=true for a stranger, got %v %v", removed, ok)
	}

	removed, ok = reg.Leave(rm.ID(), "alice")
	if !removed || !ok {
		t.Errorf("Expected removed=true ok=true, got %v %v", removed, ok)
	}
	if reg.Count() != 0 {
		t.Error("Room should be removed after its last player leaves")
	}

	if _, ok := reg.Leave(rm.ID(), "alice"); ok {
		t.Error("Expected ok=false for a missing room")
	}
}

func TestRegistry_ConcurrentJoinAndDisconnect(t *testing.T) {
	reg := New(nil)
	cfg := createTestConfig()
	cfg.MaxPlayerCount = 4
	rm := reg.Create("host", cfg)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		conn := room.ConnectionID(fmt.Sprintf("c-%d", i))
		wg.Add(2)
		go func() {
			defer wg.Done()
			rm.Join(conn, "p", room.Position{}, time.Now(), nil)
		}()
		go func() {
			defer wg.Done()
			reg.RemoveConnection(conn)
		}()
	}
	wg.Wait()

	if rm.Len() > cfg.MaxPlayerCount {
		t.Errorf("Room exceeded capacity: %d", rm.Len())
	}
	if _, ok := reg.Get(rm.ID()); !ok && !rm.Closed() {
		t.Error("A room missing from the registry must be closed")
	}
	if _, ok := reg.Get(rm.ID()); ok && rm.Closed() {
		t.Error("A closed room must not remain registered")
	}
}

func TestRegistry_List(t *testing.T) {
	reg := New(nil)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	reg.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := reg.Create("a", createTestConfig())
	second := reg.Create("b", createTestConfig())

	rooms := reg.List()
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0] != first || rooms[1] != second {
		t.Error("Expected rooms ordered by creation time")
	}
}
