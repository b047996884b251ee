package engine

import (
	"bytes"
	"math"
	"testing"

	"github.com/tracelens/investigation-engine/internal/layout"
	"github.com/tracelens/investigation-engine/internal/preprocess"
	"github.com/tracelens/investigation-engine/internal/viewport"
	"github.com/tracelens/investigation-engine/pkg/models"
)

func caseState() *State {
	nodes := []models.Node{
		{ID: "victim", Label: "Victim", X: 10, Y: 10,
			Metadata: map[string]any{models.MetaLayer: 1}},
		{ID: "mule", Label: "Mule", X: 200, Y: 200,
			Metadata: map[string]any{models.MetaLayer: 2}},
		{ID: "exit", Label: "Exit", X: 400, Y: 400,
			Metadata: map[string]any{models.MetaLayer: 3}},
	}
	links := []models.Link{
		{ID: "t1", Source: "victim", Target: "mule",
			Metadata: map[string]any{
				models.MetaAmount:          5000.0,
				models.MetaTransactionDate: "2024-03-01 10:00:00",
			}},
		{ID: "t2", Source: "mule", Target: "exit",
			Metadata: map[string]any{
				models.MetaAmount:          4800.0,
				models.MetaTransactionDate: "2024-03-01 10:15:00",
			}},
	}
	return NewState(nodes, links)
}

func TestNewStateDropsDanglingAndDuplicates(t *testing.T) {
	nodes := []models.Node{
		{ID: "a"},
		{ID: "a", Label: "duplicate"},
		{ID: "b"},
	}
	links := []models.Link{
		{ID: "l1", Source: "a", Target: "b"},
		{ID: "l1", Source: "b", Target: "a"},
		{ID: "l2", Source: "a", Target: "ghost"},
	}
	s := NewState(nodes, links)
	gotNodes, gotLinks := s.Graph()
	if len(gotNodes) != 2 {
		t.Fatalf("expected duplicate node dropped, got %d nodes", len(gotNodes))
	}
	if len(gotLinks) != 1 {
		t.Fatalf("expected dangling and duplicate links dropped, got %d links", len(gotLinks))
	}
	if gotNodes[0].Label == "duplicate" {
		t.Fatal("first occurrence must win on duplicate node ids")
	}
}

func TestEditValidation(t *testing.T) {
	s := caseState()

	if err := s.AddNode(models.Node{ID: "victim"}); err != ErrNodeExists {
		t.Fatalf("expected ErrNodeExists, got %v", err)
	}
	if err := s.AddNode(models.Node{ID: "nan", X: math.NaN()}); err != ErrNonFinitePosition {
		t.Fatalf("expected ErrNonFinitePosition, got %v", err)
	}
	if err := s.MoveNode("ghost", models.Position{}); err != ErrNodeNotFound {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if err := s.MoveNode("victim", models.Position{X: math.Inf(1)}); err != ErrNonFinitePosition {
		t.Fatalf("expected ErrNonFinitePosition, got %v", err)
	}
	if err := s.AddLink(models.Link{ID: "t1"}); err != ErrLinkExists {
		t.Fatalf("expected ErrLinkExists, got %v", err)
	}
	if err := s.AddLink(models.Link{ID: "t9", Source: "victim", Target: "ghost"}); err != ErrDanglingLink {
		t.Fatalf("expected ErrDanglingLink, got %v", err)
	}
	if err := s.DeleteLink("missing"); err != ErrLinkNotFound {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
	if err := s.UpdateLink(models.Link{ID: "missing"}); err != ErrLinkNotFound {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestDeleteNodeUndoRestoresNeighborhood(t *testing.T) {
	s := caseState()

	if err := s.DeleteNode("mule"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	nodes, links := s.Graph()
	if len(nodes) != 2 || len(links) != 0 {
		t.Fatalf("delete must cascade to attached links: %d nodes, %d links", len(nodes), len(links))
	}

	if _, err := s.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	nodes, links = s.Graph()
	if len(nodes) != 3 || len(links) != 2 {
		t.Fatalf("undo must restore node and both links: %d nodes, %d links", len(nodes), len(links))
	}
}

func TestApplyLayoutUndoRestoresExactPositions(t *testing.T) {
	s := caseState()
	before := s.FinitePositions()

	res, err := s.ApplyLayout("tree", layout.Container{Width: 1600, Height: 900})
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	if s.ActiveLayout() != "tree" {
		t.Fatalf("active layout not recorded: %q", s.ActiveLayout())
	}

	after := s.FinitePositions()
	for id, p := range res.Positions {
		if after[id] != p {
			t.Fatalf("layout positions not applied for %s: want %+v got %+v", id, p, after[id])
		}
	}

	entry, err := s.Undo()
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if entry.Kind != "LAYOUT_APPLY" {
		t.Fatalf("expected LAYOUT_APPLY entry, got %q", entry.Kind)
	}
	restored := s.FinitePositions()
	for id, p := range before {
		if restored[id] != p {
			t.Fatalf("undo must restore exact coordinates for %s: want %+v got %+v", id, p, restored[id])
		}
	}
	if s.ActiveLayout() != "" {
		t.Fatalf("undo must restore the previous (empty) strategy, got %q", s.ActiveLayout())
	}

	if _, err := s.Redo(); err != nil {
		t.Fatalf("redo failed: %v", err)
	}
	redone := s.FinitePositions()
	for id, p := range after {
		if redone[id] != p {
			t.Fatalf("redo must restore exact coordinates for %s: want %+v got %+v", id, p, redone[id])
		}
	}
	if s.ActiveLayout() != "tree" {
		t.Fatalf("redo must restore the applied strategy, got %q", s.ActiveLayout())
	}
}

func TestUndoAfterLayoutDoesNotGrowHistory(t *testing.T) {
	s := caseState()

	if _, err := s.ApplyLayout("tree", layout.Container{}); err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	entries, _, _ := s.History()
	n := len(entries)

	if _, err := s.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	entries, canUndo, canRedo := s.History()
	if len(entries) != n {
		t.Fatalf("undo grew the log: %d → %d entries", n, len(entries))
	}
	if canUndo {
		t.Fatal("single action undone: nothing further to undo")
	}
	if !canRedo {
		t.Fatal("undone action must be redoable")
	}
}

func TestLayeredSankeyRetainsAnalysis(t *testing.T) {
	s := caseState()

	res, err := s.ApplyLayout("layeredSankey", layout.Container{Width: 1600, Height: 900})
	if err != nil {
		t.Fatalf("layeredSankey failed: %v", err)
	}
	if res.Patterns == nil {
		t.Fatal("expected pattern report in the result")
	}
	if s.LastPatterns() == nil {
		t.Fatal("pattern report must be retained on the state")
	}
	if len(res.Classifications) == 0 {
		t.Fatal("expected classifications in the result")
	}
}

func TestLayeredSankeyLeavesStoredLinksUnstyled(t *testing.T) {
	s := caseState()

	if _, err := s.ApplyLayout("layeredSankey", layout.Container{Width: 1600, Height: 900}); err != nil {
		t.Fatalf("layeredSankey failed: %v", err)
	}

	_, links := s.Graph()
	for _, l := range links {
		for _, key := range []string{
			models.MetaIsRapid, models.MetaIsCircular,
			models.MetaSankeyWidth, models.MetaSankeyColor,
		} {
			if _, ok := l.Metadata[key]; ok {
				t.Fatalf("stored link %s polluted with %q: %v", l.ID, key, l.Metadata)
			}
		}
	}
}

func TestLayeredSankeyRestylesAfterCycleBroken(t *testing.T) {
	nodes := []models.Node{
		{ID: "a", Label: "A", Metadata: map[string]any{models.MetaLayer: 1}},
		{ID: "b", Label: "B", Metadata: map[string]any{models.MetaLayer: 2}},
	}
	links := []models.Link{
		{ID: "out", Source: "a", Target: "b",
			Metadata: map[string]any{
				models.MetaAmount:          5000.0,
				models.MetaTransactionDate: "2024-03-01 10:00:00",
			}},
		{ID: "back", Source: "b", Target: "a",
			Metadata: map[string]any{
				models.MetaAmount:          4900.0,
				models.MetaTransactionDate: "2024-03-01 10:10:00",
			}},
	}
	s := NewState(nodes, links)

	res, err := s.ApplyLayout("layeredSankey", layout.Container{Width: 1600, Height: 900})
	if err != nil {
		t.Fatalf("layeredSankey failed: %v", err)
	}
	if len(res.Patterns.CircularFlows) != 1 {
		t.Fatalf("setup: expected the a→b→a cycle, got %d flows", len(res.Patterns.CircularFlows))
	}
	for _, l := range res.Links {
		if !models.ToBool(l.Metadata[models.MetaIsCircular]) {
			t.Fatalf("setup: link %s should be on the cycle", l.ID)
		}
	}

	// Deleting the return edge breaks the cycle; the next run's styling must
	// match its own report, not echo the previous run's.
	if err := s.DeleteLink("back"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	res, err = s.ApplyLayout("layeredSankey", layout.Container{Width: 1600, Height: 900})
	if err != nil {
		t.Fatalf("second layeredSankey failed: %v", err)
	}
	if len(res.Patterns.CircularFlows) != 0 {
		t.Fatalf("expected no circular flows after the edit, got %d", len(res.Patterns.CircularFlows))
	}
	for _, l := range res.Links {
		if models.ToBool(l.Metadata[models.MetaIsCircular]) {
			t.Fatalf("link %s still flagged circular after the cycle was broken", l.ID)
		}
		if got := l.Metadata[models.MetaSankeyColor]; got == "red" {
			t.Fatalf("link %s still styled as circular: %v", l.ID, got)
		}
	}
}

func TestClassifyAndPatternsRunPipeline(t *testing.T) {
	s := caseState()

	cls := s.Classify()
	if len(cls) != 3 {
		t.Fatalf("expected 3 classified accounts, got %d", len(cls))
	}
	if cls["victim"].Classification != models.ClassSuspect {
		t.Fatalf("declared layer 1 must classify as suspect, got %q", cls["victim"].Classification)
	}
	if cls["exit"].Classification != models.ClassEndpoint {
		t.Fatalf("no outgoing transfers must classify as endpoint, got %q", cls["exit"].Classification)
	}
	if cls["mule"].Classification != models.ClassMule {
		t.Fatalf("96%% forwarded in 15 minutes must classify as mule, got %q", cls["mule"].Classification)
	}

	report := s.Patterns()
	if len(report.RapidForwards) != 1 {
		t.Fatalf("expected 1 rapid forward, got %d", len(report.RapidForwards))
	}
	if report.RapidForwards[0].Severity != "high" {
		t.Fatalf("15-minute forward must be high severity, got %q", report.RapidForwards[0].Severity)
	}
	if s.LastPatterns() == nil {
		t.Fatal("pattern report must be retained")
	}
}

func TestPreprocessLeavesGraphUntouched(t *testing.T) {
	s := caseState()
	res := s.Preprocess(preprocess.DefaultOptions())
	if len(res.Links) != 2 {
		t.Fatalf("expected 2 surviving links, got %d", len(res.Links))
	}
	_, links := s.Graph()
	if len(links) != 2 {
		t.Fatalf("preprocess must not mutate the graph, got %d links", len(links))
	}
	for _, l := range links {
		if l.Metadata[models.MetaIsAggregated] != nil {
			t.Fatal("preprocess flags leaked into the stored links")
		}
	}
}

func TestViewportCullsThroughEngine(t *testing.T) {
	s := caseState()
	// A tight viewport around the victim still pulls the whole neighborhood in
	// through the 800-unit padding; push the far node out of reach first.
	if err := s.MoveNode("exit", models.Position{X: 5000, Y: 5000}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	nodes, links := s.Viewport(viewport.View{X: 0, Y: 0, Zoom: 1, Width: 400, Height: 400})
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	if !ids["victim"] || !ids["mule"] {
		t.Fatalf("victim and mule must survive culling, got %v", ids)
	}
	if ids["exit"] {
		t.Fatal("far node must be culled")
	}
	for _, l := range links {
		if l.ID == "t2" {
			t.Fatal("link to a culled node must be culled")
		}
	}
}

func TestExportJSONShape(t *testing.T) {
	s := caseState()
	doc := s.ExportJSON()
	if len(doc.Nodes) != 3 || len(doc.Links) != 2 {
		t.Fatalf("export shape wrong: %d nodes, %d links", len(doc.Nodes), len(doc.Links))
	}
	if doc.ExportedAt.IsZero() {
		t.Fatal("export timestamp missing")
	}
	for _, n := range doc.Nodes {
		if math.IsNaN(n.X) || math.IsInf(n.X, 0) || math.IsNaN(n.Y) || math.IsInf(n.Y, 0) {
			t.Fatalf("non-finite coordinate leaked into export: %+v", n)
		}
	}
}

func TestExportPNG(t *testing.T) {
	s := caseState()
	png, err := s.ExportPNG()
	if err != nil {
		t.Fatalf("png export failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}

	empty := NewState(nil, nil)
	if _, err := empty.ExportPNG(); err == nil {
		t.Fatal("empty graph must refuse to export a snapshot")
	}
}

func TestStats(t *testing.T) {
	s := caseState()
	stats := s.Stats()
	if stats["nodes"] != 3 || stats["links"] != 2 || stats["layers"] != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
