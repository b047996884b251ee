package history

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Edit History
//
// A bounded linear undo/redo log over structural edits and layout
// applications. Each action is a command owning its apply/invert pair against
// an in-memory graph mutator — no network calls inside the history invariant;
// synchronizing external storage is a separate best-effort reconciliation
// step owned by the engine.
//
// Invariants:
//   - the log never exceeds MaxEntries (oldest truncated first)
//   - pushing after undos discards the redo tail
//   - undo/redo of an exhausted stack is a reported no-op, never a panic
//   - actions replayed by undo/redo are never re-pushed (the engine holds
//     the replay flag; Push refuses while it is set)

// MaxEntries caps the action log.
const MaxEntries = 50

// Action kinds.
const (
	KindAddNode     = "ADD_NODE"
	KindDeleteNode  = "DELETE_NODE"
	KindMoveNode    = "MOVE_NODE"
	KindAddLink     = "ADD_LINK"
	KindDeleteLink  = "DELETE_LINK"
	KindEditLink    = "EDIT_LINK"
	KindLayoutApply = "LAYOUT_APPLY"
)

var (
	// ErrNothingToUndo reports an empty or exhausted undo stack.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo reports an empty redo tail.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Target is the minimal in-memory graph mutator actions operate on.
// The engine's InvestigationGraphState implements it.
type Target interface {
	InsertNode(n models.Node)
	RemoveNode(id string)
	SetPosition(id string, p models.Position)
	InsertLink(l models.Link)
	RemoveLink(id string)
	ReplaceLink(l models.Link)
	RestorePositions(pos models.PositionMap, activeLayout string)
}

// Action is one undoable command.
type Action interface {
	Kind() string
	ActionID() string
	At() time.Time
	Apply(t Target)  // redo
	Invert(t Target) // undo
}

// meta is the shared identity/timestamp of every action.
type meta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func newMeta() meta {
	return meta{ID: uuid.NewString(), Timestamp: time.Now()}
}

func (m meta) ActionID() string { return m.ID }
func (m meta) At() time.Time    { return m.Timestamp }

// AddNode records a node creation.
type AddNode struct {
	meta
	Node models.Node `json:"node"`
}

func NewAddNode(n models.Node) *AddNode { return &AddNode{meta: newMeta(), Node: n} }

func (a *AddNode) Kind() string    { return KindAddNode }
func (a *AddNode) Apply(t Target)  { t.InsertNode(a.Node) }
func (a *AddNode) Invert(t Target) { t.RemoveNode(a.Node.ID) }

// DeleteNode records a node deletion together with the links that were
// attached at the time, so undo restores the full neighborhood.
type DeleteNode struct {
	meta
	Node          models.Node   `json:"node"`
	AttachedLinks []models.Link `json:"attachedLinks"`
}

func NewDeleteNode(n models.Node, attached []models.Link) *DeleteNode {
	return &DeleteNode{meta: newMeta(), Node: n, AttachedLinks: attached}
}

func (a *DeleteNode) Kind() string { return KindDeleteNode }

func (a *DeleteNode) Apply(t Target) {
	for _, l := range a.AttachedLinks {
		t.RemoveLink(l.ID)
	}
	t.RemoveNode(a.Node.ID)
}

func (a *DeleteNode) Invert(t Target) {
	t.InsertNode(a.Node)
	for _, l := range a.AttachedLinks {
		t.InsertLink(l)
	}
}

// MoveNode records a drag: old and new positions.
type MoveNode struct {
	meta
	NodeID string          `json:"nodeId"`
	From   models.Position `json:"from"`
	To     models.Position `json:"to"`
}

func NewMoveNode(id string, from, to models.Position) *MoveNode {
	return &MoveNode{meta: newMeta(), NodeID: id, From: from, To: to}
}

func (a *MoveNode) Kind() string    { return KindMoveNode }
func (a *MoveNode) Apply(t Target)  { t.SetPosition(a.NodeID, a.To) }
func (a *MoveNode) Invert(t Target) { t.SetPosition(a.NodeID, a.From) }

// AddLink records a relationship creation.
type AddLink struct {
	meta
	Link models.Link `json:"link"`
}

func NewAddLink(l models.Link) *AddLink { return &AddLink{meta: newMeta(), Link: l} }

func (a *AddLink) Kind() string    { return KindAddLink }
func (a *AddLink) Apply(t Target)  { t.InsertLink(a.Link) }
func (a *AddLink) Invert(t Target) { t.RemoveLink(a.Link.ID) }

// DeleteLink records a relationship deletion.
type DeleteLink struct {
	meta
	Link models.Link `json:"link"`
}

func NewDeleteLink(l models.Link) *DeleteLink { return &DeleteLink{meta: newMeta(), Link: l} }

func (a *DeleteLink) Kind() string    { return KindDeleteLink }
func (a *DeleteLink) Apply(t Target)  { t.RemoveLink(a.Link.ID) }
func (a *DeleteLink) Invert(t Target) { t.InsertLink(a.Link) }

// EditLink records a relationship update with full before/after snapshots.
type EditLink struct {
	meta
	Before models.Link `json:"before"`
	After  models.Link `json:"after"`
}

func NewEditLink(before, after models.Link) *EditLink {
	return &EditLink{meta: newMeta(), Before: before, After: after}
}

func (a *EditLink) Kind() string    { return KindEditLink }
func (a *EditLink) Apply(t Target)  { t.ReplaceLink(a.After) }
func (a *EditLink) Invert(t Target) { t.ReplaceLink(a.Before) }

// LayoutApply records a layout run with the full previous and new position
// sets (not deltas) so undo/redo restores exact coordinates, plus the
// previously-active layout name.
type LayoutApply struct {
	meta
	Strategy     string             `json:"strategy"`
	PrevStrategy string             `json:"prevStrategy"`
	Before       models.PositionMap `json:"before"`
	After        models.PositionMap `json:"after"`
}

func NewLayoutApply(strategy, prevStrategy string, before, after models.PositionMap) *LayoutApply {
	return &LayoutApply{
		meta:         newMeta(),
		Strategy:     strategy,
		PrevStrategy: prevStrategy,
		Before:       before.Clone(),
		After:        after.Clone(),
	}
}

func (a *LayoutApply) Kind() string    { return KindLayoutApply }
func (a *LayoutApply) Apply(t Target)  { t.RestorePositions(a.After, a.Strategy) }
func (a *LayoutApply) Invert(t Target) { t.RestorePositions(a.Before, a.PrevStrategy) }

// Entry is the JSON-facing description of one logged action.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the bounded undo/redo stack. Not safe for concurrent use; the
// engine is the single logical writer.
type Log struct {
	actions []Action
	cursor  int  // number of applied actions; log[cursor:] is the redo tail
	replay  bool // set while undo/redo replays, suppresses recursive pushes
}

// NewLog returns an empty history log.
func NewLog() *Log {
	return &Log{}
}

// Push records a new action. The redo tail is discarded, then the log is
// truncated to the newest MaxEntries. Pushes during replay are dropped:
// a layout application performed by undo must not grow the history.
// The append and truncate happen together before Push returns, so a
// crash can never leave a partial action recorded.
func (l *Log) Push(a Action) {
	if l.replay {
		return
	}
	l.actions = append(l.actions[:l.cursor], a)
	if len(l.actions) > MaxEntries {
		l.actions = l.actions[len(l.actions)-MaxEntries:]
	}
	l.cursor = len(l.actions)
}

// Undo inverts the most recent applied action against the target.
func (l *Log) Undo(t Target) (Action, error) {
	if l.cursor == 0 {
		return nil, ErrNothingToUndo
	}
	a := l.actions[l.cursor-1]
	l.replay = true
	a.Invert(t)
	l.replay = false
	l.cursor--
	return a, nil
}

// Redo re-applies the most recently undone action.
func (l *Log) Redo(t Target) (Action, error) {
	if l.cursor >= len(l.actions) {
		return nil, ErrNothingToRedo
	}
	a := l.actions[l.cursor]
	l.replay = true
	a.Apply(t)
	l.replay = false
	l.cursor++
	return a, nil
}

// CanUndo reports whether an undo is available.
func (l *Log) CanUndo() bool { return l.cursor > 0 }

// CanRedo reports whether a redo is available.
func (l *Log) CanRedo() bool { return l.cursor < len(l.actions) }

// Len returns the number of logged actions (applied + redo tail).
func (l *Log) Len() int { return len(l.actions) }

// Entries lists the log oldest-first for the history panel.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.actions))
	for i, a := range l.actions {
		out[i] = Entry{ID: a.ActionID(), Kind: a.Kind(), Timestamp: a.At()}
	}
	return out
}
