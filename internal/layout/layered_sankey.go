package layout

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/tracelens/investigation-engine/internal/classify"
	"github.com/tracelens/investigation-engine/internal/patterns"
	"github.com/tracelens/investigation-engine/internal/preprocess"
	"github.com/tracelens/investigation-engine/pkg/models"
)

// Layered Sankey Layout
//
// The compound fraud-investigation view. Pipeline:
//
//   preprocess (dedup → aggregate → amount filter)
//     → classify every account touched by the surviving links
//     → detect patterns (rapid forward, splitting, circular flows)
//     → fixed-width layer columns, in-column sort by earliest tx time
//     → derived link styling (width from log amount, color from pattern flags)
//     → fit viewport
//
// Requires layer diversity: when every node sits in one layer the view is
// meaningless, so the strategy fails with ErrNoLayerDiversity instead of
// producing a silent empty layout. No partial positions are returned.

const (
	lsColumnWidth     = 300
	lsRowHeight       = 80
	lsWidthMultiplier = 3
	lsMinSankeyWidth  = 3
)

// ErrNoLayerDiversity is returned when layer metadata is effectively absent.
var ErrNoLayerDiversity = errors.New("layered sankey requires nodes on more than one layer; assign layer metadata first")

// Link styling colors, in precedence order.
const (
	colorCircular   = "red"
	colorRapid      = "amber"
	colorAggregated = "purple"
	colorDefault    = "blue"
)

// LayeredSankey runs the full investigation pipeline and positions nodes in
// per-layer columns.
func LayeredSankey(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	layers, buckets := groupByLayer(nodes)
	if len(nodes) > 0 && len(layers) <= 1 {
		return Result{}, ErrNoLayerDiversity
	}

	pre := preprocess.Run(liveLinks(nodes, links), preprocess.DefaultOptions())
	classifications := classify.ClassifyAll(nodes, pre.Links)
	report := patterns.Detect(pre.Links, classifications, pre.Duplicates)
	patterns.MarkLinks(pre.Links, report)
	styleLinks(pre.Links)

	// Earliest transaction time per account orders nodes within a column.
	firstSeen := make(map[string]time.Time)
	note := func(id string, t time.Time) {
		if t.IsZero() {
			return
		}
		if existing, ok := firstSeen[id]; !ok || t.Before(existing) {
			firstSeen[id] = t
		}
	}
	for _, l := range pre.Links {
		t := l.Time()
		note(l.Source, t)
		note(l.Target, t)
	}

	pos := make(models.PositionMap, len(nodes))
	for colIdx, layer := range layers {
		col := buckets[layer]
		sort.SliceStable(col, func(i, j int) bool {
			ti, tj := firstSeen[col[i].ID], firstSeen[col[j].ID]
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return col[i].Label < col[j].Label
		})
		for rowIdx, n := range col {
			pos[n.ID] = models.Position{
				X: float64(colIdx) * lsColumnWidth,
				Y: float64(rowIdx) * lsRowHeight,
			}
		}
	}

	return Result{
		Positions:       pos,
		Viewport:        fitViewport(pos, c, treeMinZoom, treeMaxZoom),
		Links:           pre.Links,
		Classifications: classifications,
		Patterns:        &report,
	}, nil
}

// styleLinks writes the derived sankeyWidth/sankeyColor metadata. Width grows
// with the log of the amount so one huge transfer does not flatten the rest;
// color precedence is circular > rapid > aggregated > default.
func styleLinks(links []models.Link) {
	for i := range links {
		l := &links[i]
		meta := l.Meta()

		width := math.Log10(l.Amount()+1) * lsWidthMultiplier
		if width < lsMinSankeyWidth {
			width = lsMinSankeyWidth
		}
		meta[models.MetaSankeyWidth] = width

		switch {
		case models.ToBool(meta[models.MetaIsCircular]):
			meta[models.MetaSankeyColor] = colorCircular
		case models.ToBool(meta[models.MetaIsRapid]):
			meta[models.MetaSankeyColor] = colorRapid
		case models.ToBool(meta[models.MetaIsAggregated]):
			meta[models.MetaSankeyColor] = colorAggregated
		default:
			meta[models.MetaSankeyColor] = colorDefault
		}
	}
}
