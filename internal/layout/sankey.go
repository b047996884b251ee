package layout

import (
	"sort"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Sankey Layout
//
// Layer columns left-to-right with node heights weighted by transaction
// amount: within a column, each node's vertical extent is proportional to its
// share of the column's total flow, so thick bands read as big money movement.
// This is the plain positional variant; the layered-sankey strategy adds the
// preprocessing/classification/detection pipeline on top.

const (
	sankeyColumnWidth = 320
	sankeyMinBand     = 60
	sankeyBandGap     = 20
)

// Sankey positions nodes in amount-weighted layer columns.
func Sankey(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	layers, buckets := groupByLayer(nodes)

	pos := make(models.PositionMap, len(nodes))
	for colIdx, layer := range layers {
		col := buckets[layer]
		sort.SliceStable(col, func(i, j int) bool {
			ai, aj := col[i].Amount(), col[j].Amount()
			if ai != aj {
				return ai > aj
			}
			return col[i].Label < col[j].Label
		})

		colTotal := 0.0
		for _, n := range col {
			colTotal += n.Amount()
		}

		x := float64(colIdx) * sankeyColumnWidth
		y := 0.0
		for _, n := range col {
			band := sankeyMinBand * 1.0
			if colTotal > 0 {
				// amount share of the column scales the band height
				band += (n.Amount() / colTotal) * c.Height / 2
			}
			pos[n.ID] = models.Position{X: x, Y: y + band/2}
			y += band + sankeyBandGap
		}
	}

	return Result{
		Positions: pos,
		Viewport:  fitViewport(pos, c, treeMinZoom, treeMaxZoom),
	}, nil
}
