package layout

import (
	"fmt"
	"math"
	"sort"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Layout Engine
//
// A layout strategy is a pure function (nodes, links, container) → positions:
// it never mutates its inputs, and persistence/rendering are separate
// consumers of the returned PositionMap. Strategies that also drive the
// camera return a Viewport; the compound layered-sankey strategy additionally
// returns the preprocessed link set, classifications, and pattern report.

// Container is the drawing surface the layout targets.
type Container struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is a pan/zoom camera state produced by fitting strategies.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Result is the output of one layout application.
type Result struct {
	Strategy        string                                  `json:"strategy"`
	Positions       models.PositionMap                      `json:"positions"`
	Viewport        *Viewport                               `json:"viewport,omitempty"`
	Links           []models.Link                           `json:"links,omitempty"`           // layered sankey: styled preprocessed links
	Classifications map[string]models.AccountClassification `json:"classifications,omitempty"` // layered sankey only
	Patterns        *models.PatternReport                   `json:"patterns,omitempty"`        // layered sankey only
}

// Strategy computes positions for the given graph.
type Strategy func(nodes []models.Node, links []models.Link, c Container) (Result, error)

// strategies is the registry of available layouts.
var strategies = map[string]Strategy{
	"force":         Force,
	"tree":          Tree,
	"chronological": Chronological,
	"radial":        Radial,
	"sankey":        Sankey,
	"bankCluster":   BankCluster,
	"timeline":      Timeline,
	"layeredSankey": LayeredSankey,
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	out := make([]string, 0, len(strategies))
	for name := range strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Apply runs the named strategy.
func Apply(name string, nodes []models.Node, links []models.Link, c Container) (Result, error) {
	strat, ok := strategies[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown layout strategy: %s", name)
	}
	if c.Width <= 0 {
		c.Width = 1600
	}
	if c.Height <= 0 {
		c.Height = 900
	}
	res, err := strat(nodes, links, c)
	if err != nil {
		return Result{}, err
	}
	res.Strategy = name
	return res, nil
}

// liveLinks filters out links whose endpoints are not in the node set and
// detaches each survivor's metadata map. Dangling links never reach layout
// math, and annotation passes downstream (pattern marking, sankey styling)
// never write through to the caller's links.
func liveLinks(nodes []models.Node, links []models.Link) []models.Link {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		if ids[l.Source] && ids[l.Target] {
			out = append(out, l.Clone())
		}
	}
	return out
}

// degrees counts per-node link degree (in + out).
func degrees(nodes []models.Node, links []models.Link) map[string]int {
	deg := make(map[string]int, len(nodes))
	for _, l := range links {
		deg[l.Source]++
		deg[l.Target]++
	}
	return deg
}

// groupByLayer buckets nodes by their metadata layer (layout default 1) and
// returns the sorted distinct layer values alongside the buckets.
func groupByLayer(nodes []models.Node) ([]int, map[int][]models.Node) {
	buckets := make(map[int][]models.Node)
	for _, n := range nodes {
		layer := n.Layer()
		buckets[layer] = append(buckets[layer], n)
	}
	layers := make([]int, 0, len(buckets))
	for l := range buckets {
		layers = append(layers, l)
	}
	sort.Ints(layers)
	return layers, buckets
}

// fitViewport centers the bounding box of the positions in the container and
// clamps the fitting zoom to [minZoom, maxZoom].
func fitViewport(positions models.PositionMap, c Container, minZoom, maxZoom float64) *Viewport {
	if len(positions) == 0 {
		return &Viewport{Zoom: 1}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range positions {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	width := maxX - minX
	height := maxY - minY
	zoom := 1.0
	if width > 0 || height > 0 {
		zx, zy := math.Inf(1), math.Inf(1)
		if width > 0 {
			zx = c.Width / (width + 200)
		}
		if height > 0 {
			zy = c.Height / (height + 200)
		}
		zoom = math.Min(zx, zy)
	}
	zoom = clamp(zoom, minZoom, maxZoom)

	centerX := (minX + maxX) / 2
	centerY := (minY + maxY) / 2
	return &Viewport{
		X:    c.Width/2 - centerX*zoom,
		Y:    c.Height/2 - centerY*zoom,
		Zoom: zoom,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
