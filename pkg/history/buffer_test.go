package history

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-posecam/pkg/pose"
)

var t0 = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func snap(id string, ms int) pose.Snapshot {
	return pose.Snapshot{ID: id, CapturedAt: at(ms)}
}

func ids(b *Buffer) []string {
	var out []string
	for s := range b.Snapshots() {
		out = append(out, s.ID)
	}
	return out
}

func TestBuffer_PruneRemovesExpired(t *testing.T) {
	b := New()
	b.Append(snap("a", 0))
	b.Append(snap("b", 500))
	b.Append(snap("c", 1900))

	if removed := b.Prune(at(2000)); removed != 0 {
		t.Errorf("entry exactly at the window edge should stay, removed %d", removed)
	}

	if removed := b.Prune(at(2100)); removed != 1 {
		t.Errorf("Prune removed %d, want 1", removed)
	}
	if got := ids(b); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("after prune got %v", got)
	}

	for s := range b.Snapshots() {
		if at(2100).Sub(s.CapturedAt) > Window {
			t.Errorf("expired snapshot %s still visible", s.ID)
		}
	}
}

func TestBuffer_PruneIdempotent(t *testing.T) {
	b := New()
	b.Append(snap("a", 0))
	b.Append(snap("b", 1500))

	now := at(3000)
	first := b.Prune(now)
	second := b.Prune(now)

	if first != 1 || second != 0 {
		t.Errorf("Prune returned %d then %d, want 1 then 0", first, second)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
}

func TestBuffer_AppendKeepsArrivalOrder(t *testing.T) {
	b := New()
	b.Append(snap("late-but-newer", 1000))
	b.Append(snap("early", 400)) // arrives after, captured before

	if got := ids(b); !slices.Equal(got, []string{"late-but-newer", "early"}) {
		t.Errorf("got %v, want insertion order", got)
	}
}

func TestBuffer_AppendNeverDropsLiveEntries(t *testing.T) {
	b := New()
	for i := 0; i < 500; i++ {
		b.Append(snap("s", i))
	}
	b.Prune(at(600))
	if b.Len() != 500 {
		t.Errorf("Len = %d, want 500", b.Len())
	}
}

func TestBuffer_DuplicateTimestamps(t *testing.T) {
	b := New()
	b.Append(snap("a", 100))
	b.Append(snap("b", 100))

	if got := ids(b); len(got) != 2 {
		t.Errorf("duplicate timestamps should both be kept, got %v", got)
	}
	if b.Prune(at(2101)) != 2 {
		t.Error("both duplicates should expire together")
	}
}

func TestBuffer_SnapshotsRestartableAndStable(t *testing.T) {
	b := New()
	b.Append(snap("a", 0))
	b.Append(snap("b", 100))

	seq := b.Snapshots()

	// Mutations after the view was taken do not leak into it.
	b.Append(snap("c", 200))
	b.Prune(at(2050))

	collect := func() []string {
		var out []string
		for s := range seq {
			out = append(out, s.ID)
		}
		return out
	}

	first := collect()
	second := collect()
	if !slices.Equal(first, []string{"a", "b"}) || !slices.Equal(first, second) {
		t.Errorf("iterations differ or leaked: %v vs %v", first, second)
	}

	// Early break is honoured.
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early break visited %d", n)
	}
}

func TestBuffer_ConcurrentAppend(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(snap("x", 0))
			}
		}()
	}
	wg.Wait()

	if b.Len() != 800 {
		t.Errorf("Len = %d, want 800", b.Len())
	}
	b.Reset()
	if b.Len() != 0 {
		t.Error("Reset should empty the buffer")
	}
}

func TestAgeFactor(t *testing.T) {
	tests := []struct {
		name string
		age  int
		want float64
	}{
		{"fresh", 0, 0},
		{"quarter", 500, 0.25},
		{"eighty percent", 1600, 0.8},
		{"at window", 2000, 1},
		{"past window clamps", 5000, 1},
		{"future clamps", -300, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AgeFactor(at(tc.age), t0)
			if got != tc.want {
				t.Errorf("AgeFactor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAgeFactor_Monotonic(t *testing.T) {
	prev := -1.0
	for ms := -100; ms <= 2500; ms += 37 {
		f := AgeFactor(at(ms), t0)
		if f < prev {
			t.Fatalf("AgeFactor decreased at %dms: %v < %v", ms, f, prev)
		}
		if f < 0 || f > 1 {
			t.Fatalf("AgeFactor out of range at %dms: %v", ms, f)
		}
		prev = f
	}
}

func TestBuffer_CustomWindow(t *testing.T) {
	b := NewWithWindow(time.Second)
	b.Append(snap("a", 0))
	if b.Prune(at(1001)) != 1 {
		t.Error("custom window not applied")
	}
	if b.AgeFactor(at(500), t0) != 0.5 {
		t.Errorf("AgeFactor with 1s window = %v", b.AgeFactor(at(500), t0))
	}
}
