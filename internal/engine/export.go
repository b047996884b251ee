package engine

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Exports for the evidence bundle: a JSON document of the current graph and
// a rasterized snapshot of the current view. Both read a snapshot under the
// lock and render outside the engine's mutation path.

// ExportedNode is the JSON export shape for one node.
type ExportedNode struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Type      string         `json:"type"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	RiskLevel string         `json:"risk_level"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ExportedLink is the JSON export shape for one link.
type ExportedLink struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Label  string `json:"label"`
}

// Export is the JSON evidence document.
type Export struct {
	Nodes      []ExportedNode `json:"nodes"`
	Links      []ExportedLink `json:"links"`
	ExportedAt time.Time      `json:"exported_at"`
}

// ExportJSON builds the evidence document. Nodes with non-finite positions
// are exported at the origin rather than leaking NaN into the file.
func (s *State) ExportJSON() Export {
	nodes, links := s.Graph()

	out := Export{
		Nodes:      make([]ExportedNode, 0, len(nodes)),
		Links:      make([]ExportedLink, 0, len(links)),
		ExportedAt: time.Now().UTC(),
	}
	for _, n := range nodes {
		x, y := n.X, n.Y
		if !(models.Position{X: x, Y: y}).Finite() {
			x, y = 0, 0
		}
		out.Nodes = append(out.Nodes, ExportedNode{
			ID:        n.ID,
			Label:     n.Label,
			Type:      n.Type,
			X:         x,
			Y:         y,
			RiskLevel: n.RiskLevel,
			Metadata:  n.Metadata,
		})
	}
	for _, l := range links {
		out.Links = append(out.Links, ExportedLink{
			ID:     l.ID,
			Source: l.Source,
			Target: l.Target,
			Type:   l.Type,
			Label:  l.Label,
		})
	}
	return out
}

const (
	snapshotWidth  = 1600
	snapshotHeight = 900
	snapshotMargin = 80
	nodeRadius     = 14
)

// riskColors for the snapshot fill, matching the alerts panel palette.
var riskColors = map[string][3]float64{
	models.RiskCritical: {0.86, 0.15, 0.15},
	models.RiskHigh:     {0.95, 0.45, 0.10},
	models.RiskMedium:   {0.98, 0.75, 0.14},
	models.RiskLow:      {0.20, 0.65, 0.32},
	models.RiskUnknown:  {0.55, 0.58, 0.62},
}

// ExportPNG rasterizes the current graph: links as lines, nodes as
// risk-colored discs with labels. The world bounding box is scaled to fit
// the fixed snapshot canvas.
func (s *State) ExportPNG() ([]byte, error) {
	nodes, links := s.Graph()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("nothing to export: graph has no nodes")
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		if !(models.Position{X: n.X, Y: n.Y}).Finite() {
			continue
		}
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X)
		maxY = math.Max(maxY, n.Y)
	}
	if math.IsInf(minX, 1) {
		minX, minY, maxX, maxY = 0, 0, 1, 1
	}
	scale := math.Min(
		(snapshotWidth-2*snapshotMargin)/math.Max(maxX-minX, 1),
		(snapshotHeight-2*snapshotMargin)/math.Max(maxY-minY, 1),
	)
	toScreen := func(x, y float64) (float64, float64) {
		return snapshotMargin + (x-minX)*scale, snapshotMargin + (y-minY)*scale
	}

	dc := gg.NewContext(snapshotWidth, snapshotHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	pos := make(map[string][2]float64, len(nodes))
	for _, n := range nodes {
		if !(models.Position{X: n.X, Y: n.Y}).Finite() {
			continue
		}
		sx, sy := toScreen(n.X, n.Y)
		pos[n.ID] = [2]float64{sx, sy}
	}

	dc.SetRGBA(0.35, 0.40, 0.48, 0.7)
	dc.SetLineWidth(1.5)
	for _, l := range links {
		a, okA := pos[l.Source]
		b, okB := pos[l.Target]
		if !okA || !okB {
			continue
		}
		dc.DrawLine(a[0], a[1], b[0], b[1])
		dc.Stroke()
	}

	for _, n := range nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		c, ok := riskColors[n.RiskLevel]
		if !ok {
			c = riskColors[models.RiskUnknown]
		}
		dc.SetRGB(c[0], c[1], c[2])
		dc.DrawCircle(p[0], p[1], nodeRadius)
		dc.Fill()
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(n.Label, p[0], p[1]+nodeRadius+10, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %v", err)
	}
	return buf.Bytes(), nil
}
