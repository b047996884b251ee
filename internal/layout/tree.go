package layout

import (
	"sort"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Tree / Layer Layout
//
// Stacks the declared metadata layers top-to-bottom, the way an analyst draws
// a laundering chain on a whiteboard: victims on top, each hop one row down.
// Rows are sorted by descending transaction amount (label breaks ties) so the
// big movers sit leftmost, then the whole bounding box is centered in the
// viewport with the fitting zoom clamped to [0.45, 1.1].

const (
	treeMinVSpacing = 600
	treeMaxVSpacing = 900
	treeMinHSpacing = 300
	treeMaxHSpacing = 500
	treeMinZoom     = 0.45
	treeMaxZoom     = 1.1
)

// Tree positions nodes by declared layer.
func Tree(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	layers, buckets := groupByLayer(nodes)

	for _, layer := range layers {
		row := buckets[layer]
		sort.SliceStable(row, func(i, j int) bool {
			ai, aj := row[i].Amount(), row[j].Amount()
			if ai != aj {
				return ai > aj
			}
			return row[i].Label < row[j].Label
		})
	}

	pos := placeLayerRows(layers, buckets, c)
	return Result{
		Positions: pos,
		Viewport:  fitViewport(pos, c, treeMinZoom, treeMaxZoom),
	}, nil
}

// placeLayerRows assigns row/column coordinates for pre-sorted layer buckets.
// Spacing floors keep dense graphs readable; the caps keep sparse graphs from
// degenerate spread on wide containers.
func placeLayerRows(layers []int, buckets map[int][]models.Node, c Container) models.PositionMap {
	vSpacing := treeMinVSpacing * 1.0
	if len(layers) > 1 {
		vSpacing = clamp(c.Height/float64(len(layers)-1), treeMinVSpacing, treeMaxVSpacing)
	}

	widest := 1
	for _, row := range buckets {
		if len(row) > widest {
			widest = len(row)
		}
	}
	hSpacing := treeMinHSpacing * 1.0
	if widest > 1 {
		hSpacing = clamp(c.Width/float64(widest-1), treeMinHSpacing, treeMaxHSpacing)
	}

	pos := make(models.PositionMap)
	for rowIdx, layer := range layers {
		row := buckets[layer]
		rowWidth := float64(len(row)-1) * hSpacing
		startX := -rowWidth / 2
		for colIdx, n := range row {
			pos[n.ID] = models.Position{
				X: startX + float64(colIdx)*hSpacing,
				Y: float64(rowIdx) * vSpacing,
			}
		}
	}
	return pos
}
