package history

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/markline/markline/backend-go/internal/annotation"
)

func scene(ids ...string) []*annotation.Annotation {
	out := make([]*annotation.Annotation, len(ids))
	for i, id := range ids {
		out[i] = &annotation.Annotation{ID: id, Type: annotation.TypeRectangle, PageNumber: 1}
	}
	return out
}

func ids(annos []*annotation.Annotation) []string {
	out := make([]string, len(annos))
	for i, a := range annos {
		out[i] = a.ID
	}
	return out
}

func TestUndoRedoInverseLaw(t *testing.T) {
	h := New(10)

	// Three edits, each snapshotting the pre-mutation state.
	h.Snapshot(scene())
	h.Snapshot(scene("a"))
	h.Snapshot(scene("a", "b"))
	current := scene("a", "b", "c")

	var restored []*annotation.Annotation
	restore := func(s []*annotation.Annotation) { restored = s }

	if !h.Undo(current, restore) {
		t.Fatal("Undo returned false")
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids(restored)); diff != "" {
		t.Fatalf("after undo (-want +got):\n%s", diff)
	}

	if !h.Redo(restored, restore) {
		t.Fatal("Redo returned false")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(restored)); diff != "" {
		t.Errorf("after redo (-want +got):\n%s", diff)
	}
}

func TestUndoToEmptyScene(t *testing.T) {
	h := New(10)
	h.Snapshot(scene())
	current := scene("a")

	var restored []*annotation.Annotation
	if !h.Undo(current, func(s []*annotation.Annotation) { restored = s }) {
		t.Fatal("Undo returned false")
	}
	if len(restored) != 0 {
		t.Errorf("restored %d annotations, want empty scene", len(restored))
	}
}

func TestNewEditDiscardsRedoBranch(t *testing.T) {
	h := New(10)
	h.Snapshot(scene())
	h.Undo(scene("a"), func([]*annotation.Annotation) {})
	if !h.CanRedo() {
		t.Fatal("redo stack empty after undo")
	}

	h.Snapshot(scene())
	if h.CanRedo() {
		t.Error("new edit kept the redo branch")
	}
}

func TestEmptyStacksAreNoOps(t *testing.T) {
	h := New(10)
	called := false
	restore := func([]*annotation.Annotation) { called = true }

	if h.Undo(scene("a"), restore) {
		t.Error("Undo on empty stack returned true")
	}
	if h.Redo(scene("a"), restore) {
		t.Error("Redo on empty stack returned true")
	}
	if called {
		t.Error("restore called with empty stacks")
	}
}

func TestDepthCapEvictsOldest(t *testing.T) {
	h := New(3)
	for i := 0; i < 5; i++ {
		h.Snapshot(scene(fmt.Sprintf("edit_%d", i)))
	}
	if h.Depth() != 3 {
		t.Fatalf("depth = %d, want 3", h.Depth())
	}

	// Drain the stack: the two oldest snapshots are gone for good.
	var last []*annotation.Annotation
	restore := func(s []*annotation.Annotation) { last = s }
	undos := 0
	for h.Undo(scene(), restore) {
		undos++
	}
	if undos != 3 {
		t.Errorf("performed %d undos, want 3", undos)
	}
	if diff := cmp.Diff([]string{"edit_2"}, ids(last)); diff != "" {
		t.Errorf("deepest reachable state (-want +got):\n%s", diff)
	}
}

func TestSnapshotIgnoredWhileReplaying(t *testing.T) {
	h := New(10)
	h.Snapshot(scene())

	h.Undo(scene("a"), func(s []*annotation.Annotation) {
		if !h.Replaying() {
			t.Error("Replaying false inside restore")
		}
		// A restore that routes through the normal mutation path must not
		// push new entries.
		h.Snapshot(s)
	})

	if h.Depth() != 0 {
		t.Errorf("replay polluted the undo stack: depth = %d", h.Depth())
	}
}

func TestClear(t *testing.T) {
	h := New(10)
	h.Snapshot(scene("a"))
	h.Undo(scene("a", "b"), func([]*annotation.Annotation) {})

	h.Clear()
	if h.CanUndo() || h.CanRedo() {
		t.Error("Clear left stack entries")
	}
}

func TestSnapshotsAreIsolatedFromLaterMutation(t *testing.T) {
	h := New(10)
	live := scene("a")
	h.Snapshot(live)

	// Mutating the live scene after the snapshot must not rewrite history.
	live[0].ID = "mutated"

	var restored []*annotation.Annotation
	h.Undo(scene("a", "b"), func(s []*annotation.Annotation) { restored = s })
	if diff := cmp.Diff([]string{"a"}, ids(restored)); diff != "" {
		t.Errorf("snapshot isolation (-want +got):\n%s", diff)
	}
}
