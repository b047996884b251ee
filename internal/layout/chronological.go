package layout

import (
	"sort"
	"time"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Chronological Layout
//
// Ignores declared layer metadata and derives a per-account hop position
// purely from transaction order: walking the links sorted by parsed
// timestamp, the first time an account sends it is pinned at layer 0 (unless
// already placed), and a recipient lands one layer below its sender. When a
// re-examined transaction would place an account earlier in the chain, the
// earlier position wins. Rows are then laid out like the tree strategy,
// sorted within a layer by first-transaction time instead of amount.

// Chronological positions nodes by transaction-order-derived layers.
func Chronological(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	live := liveLinks(nodes, links)
	sorted := make([]models.Link, len(live))
	copy(sorted, live)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time().Before(sorted[j].Time())
	})

	assigned := make(map[string]int)
	firstSeen := make(map[string]time.Time)
	for _, l := range sorted {
		t := l.Time()
		if _, ok := firstSeen[l.Source]; !ok {
			firstSeen[l.Source] = t
		}
		if _, ok := firstSeen[l.Target]; !ok {
			firstSeen[l.Target] = t
		}

		srcLayer, ok := assigned[l.Source]
		if !ok {
			srcLayer = 0
			assigned[l.Source] = 0
		}
		dstLayer := srcLayer + 1
		if existing, ok := assigned[l.Target]; !ok || dstLayer < existing {
			assigned[l.Target] = dstLayer
		}
	}

	buckets := make(map[int][]models.Node)
	for _, n := range nodes {
		layer, ok := assigned[n.ID]
		if !ok {
			layer = 0 // accounts with no transactions sit in the first row
		}
		buckets[layer] = append(buckets[layer], n)
	}
	layers := make([]int, 0, len(buckets))
	for l := range buckets {
		layers = append(layers, l)
	}
	sort.Ints(layers)

	for _, layer := range layers {
		row := buckets[layer]
		sort.SliceStable(row, func(i, j int) bool {
			ti, tj := firstSeen[row[i].ID], firstSeen[row[j].ID]
			if !ti.Equal(tj) {
				return ti.Before(tj)
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
