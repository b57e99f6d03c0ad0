package blacklist

import (
	"strings"
	"sync"
	"testing"
)

// TestRecorder tests frequency recording and export
func TestRecorder(t *testing.T) {
	t.Run("NormalizesWords", func(t *testing.T) {
		r := NewRecorder()
		r.Record("John")
		r.Record("john")
		r.Record("  JOHN  ")
		r.Record("john smith") // cut at first space
		r.Record("")
		r.Record("   ")

		snap := r.Snapshot()
		if len(snap) != 1 {
			t.Fatalf("snapshot = %+v, want one entry", snap)
		}
		if snap[0].Word != "john" || snap[0].Count != 4 {
			t.Errorf("entry = %+v, want john/4", snap[0])
		}
	})

	t.Run("SnapshotOrdersByCount", func(t *testing.T) {
		r := NewRecorder()
		for i := 0; i < 3; i++ {
			r.Record("common")
		}
		r.Record("rare")
		r.Record("also")
		r.Record("also")

		snap := r.Snapshot()
		if len(snap) != 3 {
			t.Fatalf("snapshot = %+v", snap)
		}
		if snap[0].Word != "common" || snap[1].Word != "also" || snap[2].Word != "rare" {
			t.Errorf("order = %v %v %v", snap[0], snap[1], snap[2])
		}
	})

	t.Run("Export", func(t *testing.T) {
		r := NewRecorder()
		r.Record("bad")
		r.Record("bad")
		r.Record("worse")

		got := r.Export()
		want := "\"bad\", 2\n\"worse\", 1\n"
		if got != want {
			t.Errorf("Export() = %q, want %q", got, want)
		}
	})

	t.Run("DirtyTracking", func(t *testing.T) {
		r := NewRecorder()
		r.Record("one")
		r.Record("two")

		dirty := r.takeDirty()
		if len(dirty) != 2 {
			t.Fatalf("dirty = %+v", dirty)
		}
		if again := r.takeDirty(); again != nil {
			t.Errorf("second take should be empty, got %+v", again)
		}

		r.Record("one")
		dirty = r.takeDirty()
		if len(dirty) != 1 || dirty[0].Word != "one" || dirty[0].Count != 2 {
			t.Errorf("dirty after re-record = %+v", dirty)
		}

		// A failed flush re-marks the entries.
		r.restoreDirty(dirty)
		if restored := r.takeDirty(); len(restored) != 1 {
			t.Errorf("restored dirty = %+v", restored)
		}
	})

	t.Run("ConcurrentRecord", func(t *testing.T) {
		r := NewRecorder()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					r.Record("hot")
				}
			}()
		}
		wg.Wait()
		snap := r.Snapshot()
		if len(snap) != 1 || snap[0].Count != 800 {
			t.Errorf("snapshot = %+v, want hot/800", snap)
		}
	})

	t.Run("ExportEmpty", func(t *testing.T) {
		r := NewRecorder()
		if got := r.Export(); got != "" {
			t.Errorf("Export() = %q, want empty", got)
		}
		if strings.Contains(r.Export(), "\n\n") {
			t.Error("export should not contain blank lines")
		}
	})
}
