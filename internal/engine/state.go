package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tracelens/investigation-engine/internal/classify"
	"github.com/tracelens/investigation-engine/internal/history"
	"github.com/tracelens/investigation-engine/internal/layout"
	"github.com/tracelens/investigation-engine/internal/patterns"
	"github.com/tracelens/investigation-engine/internal/preprocess"
	"github.com/tracelens/investigation-engine/internal/viewport"
	"github.com/tracelens/investigation-engine/pkg/models"
)

// InvestigationGraphState owns the node/link collection for one case and is
// the single writer over it. All mutation goes through the documented
// operations below; each structural edit and layout application is recorded
// in the bounded history log. Computation is synchronous: a layout run,
// classification pass, or history replay completes under the lock before the
// next mutation is accepted, so every layout stays a pure total function of
// the state it read.
//
// External persistence (position rows, classification rows) is a separate
// best-effort concern of the API layer — nothing here depends on it.

var (
	ErrNodeExists   = errors.New("node id already exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrLinkExists   = errors.New("link id already exists")
	ErrLinkNotFound = errors.New("link not found")
	// ErrDanglingLink rejects links referencing unknown nodes.
	ErrDanglingLink = errors.New("link endpoints must reference existing nodes")
	// ErrNonFinitePosition rejects NaN/Inf coordinates at the boundary.
	ErrNonFinitePosition = errors.New("position must be finite")
)

// State is the engine's in-memory investigation graph.
type State struct {
	mu           sync.Mutex
	nodes        []models.Node
	links        []models.Link
	nodeIdx      map[string]int
	linkIdx      map[string]int
	log          *history.Log
	activeLayout string

	// last layered-sankey / explicit-classification outputs
	classifications map[string]models.AccountClassification
	patternReport   *models.PatternReport
}

// NewState builds a state from the case's node/link collections. Links whose
// endpoints are unknown are dropped up front, matching the rendering rule.
func NewState(nodes []models.Node, links []models.Link) *State {
	s := &State{
		nodes:   make([]models.Node, 0, len(nodes)),
		links:   make([]models.Link, 0, len(links)),
		nodeIdx: make(map[string]int, len(nodes)),
		linkIdx: make(map[string]int, len(links)),
		log:     history.NewLog(),
	}
	for _, n := range nodes {
		if _, dup := s.nodeIdx[n.ID]; dup {
			continue
		}
		s.nodeIdx[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}
	for _, l := range links {
		_, srcOK := s.nodeIdx[l.Source]
		_, dstOK := s.nodeIdx[l.Target]
		if !srcOK || !dstOK {
			continue
		}
		if _, dup := s.linkIdx[l.ID]; dup {
			continue
		}
		s.linkIdx[l.ID] = len(s.links)
		s.links = append(s.links, l)
	}
	return s
}

// ── history.Target implementation (raw mutators, no history push) ──

func (s *State) InsertNode(n models.Node) {
	if _, ok := s.nodeIdx[n.ID]; ok {
		return
	}
	s.nodeIdx[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
}

func (s *State) RemoveNode(id string) {
	i, ok := s.nodeIdx[id]
	if !ok {
		return
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	delete(s.nodeIdx, id)
	for j := i; j < len(s.nodes); j++ {
		s.nodeIdx[s.nodes[j].ID] = j
	}
}

func (s *State) SetPosition(id string, p models.Position) {
	if i, ok := s.nodeIdx[id]; ok {
		s.nodes[i].X = p.X
		s.nodes[i].Y = p.Y
	}
}

func (s *State) InsertLink(l models.Link) {
	if _, ok := s.linkIdx[l.ID]; ok {
		return
	}
	s.linkIdx[l.ID] = len(s.links)
	s.links = append(s.links, l)
}

func (s *State) RemoveLink(id string) {
	i, ok := s.linkIdx[id]
	if !ok {
		return
	}
	s.links = append(s.links[:i], s.links[i+1:]...)
	delete(s.linkIdx, id)
	for j := i; j < len(s.links); j++ {
		s.linkIdx[s.links[j].ID] = j
	}
}

func (s *State) ReplaceLink(l models.Link) {
	if i, ok := s.linkIdx[l.ID]; ok {
		s.links[i] = l
	}
}

func (s *State) RestorePositions(pos models.PositionMap, activeLayout string) {
	for id, p := range pos {
		s.SetPosition(id, p)
	}
	s.activeLayout = activeLayout
}

// ── documented operations ──

// AddNode inserts a new node and records the edit.
func (s *State) AddNode(n models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if _, ok := s.nodeIdx[n.ID]; ok {
		return ErrNodeExists
	}
	if !(models.Position{X: n.X, Y: n.Y}).Finite() {
		return ErrNonFinitePosition
	}
	action := history.NewAddNode(n)
	action.Apply(s)
	s.log.Push(action)
	return nil
}

// DeleteNode removes a node and its attached links, recording enough to
// restore the full neighborhood on undo.
func (s *State) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.nodeIdx[id]
	if !ok {
		return ErrNodeNotFound
	}
	var attached []models.Link
	for _, l := range s.links {
		if l.Source == id || l.Target == id {
			attached = append(attached, l)
		}
	}
	action := history.NewDeleteNode(s.nodes[i], attached)
	action.Apply(s)
	s.log.Push(action)
	return nil
}

// MoveNode records a drag from the node's current position.
func (s *State) MoveNode(id string, to models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.nodeIdx[id]
	if !ok {
		return ErrNodeNotFound
	}
	if !to.Finite() {
		return ErrNonFinitePosition
	}
	from := models.Position{X: s.nodes[i].X, Y: s.nodes[i].Y}
	action := history.NewMoveNode(id, from, to)
	action.Apply(s)
	s.log.Push(action)
	return nil
}

// AddLink inserts a new relationship. Dangling endpoints are rejected.
func (s *State) AddLink(l models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		return fmt.Errorf("link id is required")
	}
	if _, ok := s.linkIdx[l.ID]; ok {
		return ErrLinkExists
	}
	_, srcOK := s.nodeIdx[l.Source]
	_, dstOK := s.nodeIdx[l.Target]
	if !srcOK || !dstOK {
		return ErrDanglingLink
	}
	action := history.NewAddLink(l)
	action.Apply(s)
	s.log.Push(action)
	return nil
}

// UpdateLink replaces a relationship's payload, keeping its id.
func (s *State) UpdateLink(l models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.linkIdx[l.ID]
	if !ok {
		return ErrLinkNotFound
	}
	_, srcOK := s.nodeIdx[l.Source]
	_, dstOK := s.nodeIdx[l.Target]
	if !srcOK || !dstOK {
		return ErrDanglingLink
	}
	action := history.NewEditLink(s.links[i], l)
	action.Apply(s)
	s.log.Push(action)
	return nil
}

// DeleteLink removes a relationship.
func (s *State) DeleteLink(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.linkIdx[id]
	if !ok {
		return ErrLinkNotFound
	}
	action := history.NewDeleteLink(s.links[i])
	action.Apply(s)
	s.log.Push(action)
	return nil
}

// ApplyLayout runs the named strategy over a snapshot of the graph, applies
// the resulting positions, and records a LAYOUT_APPLY action carrying the
// full previous and new position sets. On layered sankey the classification
// map and pattern report are retained for the alerts panel.
func (s *State) ApplyLayout(strategy string, c layout.Container) (layout.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.cloneNodes()
	links := s.cloneLinks()
	res, err := layout.Apply(strategy, nodes, links, c)
	if err != nil {
		return layout.Result{}, err
	}

	before := s.positions()
	prev := s.activeLayout
	for id, p := range res.Positions {
		if !p.Finite() {
			// a NaN coordinate must never land in the graph or persist
			delete(res.Positions, id)
		}
	}
	action := history.NewLayoutApply(strategy, prev, before, res.Positions)
	action.Apply(s)
	s.log.Push(action)

	if res.Classifications != nil {
		s.classifications = res.Classifications
	}
	if res.Patterns != nil {
		s.patternReport = res.Patterns
	}
	return res, nil
}

// Undo reverts the most recent action. An exhausted stack is reported as an
// error the API surfaces as a user-visible no-op message.
func (s *State) Undo() (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.log.Undo(s)
	if err != nil {
		return history.Entry{}, err
	}
	return history.Entry{ID: a.ActionID(), Kind: a.Kind(), Timestamp: a.At()}, nil
}

// Redo re-applies the most recently undone action.
func (s *State) Redo() (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.log.Redo(s)
	if err != nil {
		return history.Entry{}, err
	}
	return history.Entry{ID: a.ActionID(), Kind: a.Kind(), Timestamp: a.At()}, nil
}

// History lists the action log oldest-first plus the undo/redo availability.
func (s *State) History() ([]history.Entry, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Entries(), s.log.CanUndo(), s.log.CanRedo()
}

// Preprocess runs the transaction pipeline over a snapshot and returns the
// cleaned links plus the duplicate audit trail. The graph itself is not
// mutated: preprocessing feeds detection and the layered view, the raw links
// stay the source of truth.
func (s *State) Preprocess(opts preprocess.Options) preprocess.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return preprocess.Run(s.cloneLinks(), opts)
}

// Classify recomputes the account classification map from the preprocessed
// link set (explicit classification request path).
func (s *State) Classify() map[string]models.AccountClassification {
	s.mu.Lock()
	defer s.mu.Unlock()
	pre := preprocess.Run(s.cloneLinks(), preprocess.DefaultOptions())
	s.classifications = classify.ClassifyAll(s.cloneNodes(), pre.Links)
	return s.classifications
}

// Patterns recomputes the full pattern report from the preprocessed link set.
func (s *State) Patterns() models.PatternReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	pre := preprocess.Run(s.cloneLinks(), preprocess.DefaultOptions())
	classifications := classify.ClassifyAll(s.cloneNodes(), pre.Links)
	report := patterns.Detect(pre.Links, classifications, pre.Duplicates)
	s.patternReport = &report
	return report
}

// LastPatterns returns the report retained by the most recent layered-sankey
// or Patterns run, if any.
func (s *State) LastPatterns() *models.PatternReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patternReport
}

// Viewport culls the graph against the padded view rectangle.
func (s *State) Viewport(v viewport.View) ([]models.Node, []models.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return viewport.Cull(s.cloneNodes(), s.cloneLinks(), v)
}

// Graph returns a snapshot of the node and link collections.
func (s *State) Graph() ([]models.Node, []models.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneNodes(), s.cloneLinks()
}

// ActiveLayout returns the name of the last applied layout strategy.
func (s *State) ActiveLayout() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLayout
}

// FinitePositions returns the persistable position map: every node whose
// coordinates are finite. The position-update collaborator must never be
// called with NaN/Inf.
func (s *State) FinitePositions() models.PositionMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.PositionMap, len(s.nodes))
	for _, n := range s.nodes {
		p := models.Position{X: n.X, Y: n.Y}
		if p.Finite() {
			out[n.ID] = p
		}
	}
	return out
}

// Stats summarizes the graph for the header bar.
func (s *State) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	layers := make(map[int]int)
	for i := range s.nodes {
		layers[s.nodes[i].Layer()]++
	}
	return map[string]any{
		"nodes":        len(s.nodes),
		"links":        len(s.links),
		"layers":       len(layers),
		"activeLayout": s.activeLayout,
		"historyLen":   s.log.Len(),
	}
}

func (s *State) positions() models.PositionMap {
	out := make(models.PositionMap, len(s.nodes))
	for _, n := range s.nodes {
		out[n.ID] = models.Position{X: n.X, Y: n.Y}
	}
	return out
}

func (s *State) cloneNodes() []models.Node {
	out := make([]models.Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

func (s *State) cloneLinks() []models.Link {
	out := make([]models.Link, len(s.links))
	copy(out, s.links)
	return out
}
