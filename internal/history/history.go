// Package history implements bounded, snapshot-based undo/redo over the
// overlay scene. Entries are full serialized scene states; each mutation is
// preceded by a snapshot of the pre-mutation state, so popping an entry
// restores the scene to the moment before that mutation.
package history

import (
	"encoding/json"
	"log/slog"

	"github.com/markline/markline/backend-go/internal/annotation"
)

// DefaultDepth is the snapshot cap used when no depth is configured.
const DefaultDepth = 50

// Entry is an opaque, fully-serialized scene snapshot.
type Entry struct {
	Seq  int64
	Data []byte
}

// History holds the undo and redo stacks.
type History struct {
	undo      []Entry
	redo      []Entry
	depth     int
	seq       int64
	replaying bool
}

// New creates a history with the given depth cap.
func New(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{depth: depth}
}

// Snapshot captures a scene state onto the undo stack and clears the redo
// stack (new edits discard the redone branch). Calls made while a restore is
// replaying are ignored so the act of undoing never pollutes history.
func (h *History) Snapshot(scene []*annotation.Annotation) {
	if h.replaying {
		return
	}

	data, err := encode(scene)
	if err != nil {
		slog.Error("encode history snapshot", "error", err)
		return
	}

	h.seq++
	h.undo = append(h.undo, Entry{Seq: h.seq, Data: data})
	if len(h.undo) > h.depth {
		// FIFO eviction bounds memory; the oldest edit becomes permanent.
		h.undo = h.undo[1:]
	}
	h.redo = h.redo[:0]
}

// Undo pushes the current state onto the redo stack, pops the most recent
// undo entry, and hands it to restore with the replaying flag held. Returns
// false without side effects if the undo stack is empty.
func (h *History) Undo(current []*annotation.Annotation, restore func([]*annotation.Annotation)) bool {
	if len(h.undo) == 0 {
		return false
	}

	entry := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	scene, err := decode(entry.Data)
	if err != nil {
		slog.Error("decode history snapshot", "seq", entry.Seq, "error", err)
		return false
	}

	data, err := encode(current)
	if err != nil {
		slog.Error("encode history snapshot", "error", err)
		return false
	}
	h.seq++
	h.redo = append(h.redo, Entry{Seq: h.seq, Data: data})

	h.replay(scene, restore)
	return true
}

// Redo is the symmetric operation using the redo stack.
func (h *History) Redo(current []*annotation.Annotation, restore func([]*annotation.Annotation)) bool {
	if len(h.redo) == 0 {
		return false
	}

	entry := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	scene, err := decode(entry.Data)
	if err != nil {
		slog.Error("decode history snapshot", "seq", entry.Seq, "error", err)
		return false
	}

	data, err := encode(current)
	if err != nil {
		slog.Error("encode history snapshot", "error", err)
		return false
	}
	h.seq++
	h.undo = append(h.undo, Entry{Seq: h.seq, Data: data})

	h.replay(scene, restore)
	return true
}

func (h *History) replay(scene []*annotation.Annotation, restore func([]*annotation.Annotation)) {
	h.replaying = true
	defer func() { h.replaying = false }()
	restore(scene)
}

// CanUndo reports whether the undo stack is non-empty.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Replaying reports whether a restore is currently executing.
func (h *History) Replaying() bool { return h.replaying }

// Clear drops both stacks, used on page navigation and document changes.
func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

// Depth returns the number of entries currently on the undo stack.
func (h *History) Depth() int { return len(h.undo) }

func encode(scene []*annotation.Annotation) ([]byte, error) {
	return json.Marshal(scene)
}

func decode(data []byte) ([]*annotation.Annotation, error) {
	var scene []*annotation.Annotation
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, err
	}
	return scene, nil
}
