package layout

import (
	"math"
	"sort"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Radial Layout
//
// Concentric rings, one per declared layer: the seed layer sits on the
// innermost ring and each hop moves one ring outward. Within a ring, nodes
// are ordered by descending degree and spread at equal angles, so the busiest
// accounts in a hop are easy to spot at the top of the circle.

const (
	radialBaseRadius = 200
	radialRingStep   = 180
)

// Radial places nodes on concentric layer rings.
func Radial(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	layers, buckets := groupByLayer(nodes)
	deg := degrees(nodes, liveLinks(nodes, links))

	centerX := c.Width / 2
	centerY := c.Height / 2

	pos := make(models.PositionMap, len(nodes))
	for ringIdx, layer := range layers {
		ring := buckets[layer]
		sort.SliceStable(ring, func(i, j int) bool {
			di, dj := deg[ring[i].ID], deg[ring[j].ID]
			if di != dj {
				return di > dj
			}
			return ring[i].Label < ring[j].Label
		})

		radius := float64(radialBaseRadius + radialRingStep*ringIdx)
		step := 2 * math.Pi / float64(len(ring))
		for i, n := range ring {
			angle := -math.Pi/2 + float64(i)*step // start at 12 o'clock
			pos[n.ID] = models.Position{
				X: centerX + radius*math.Cos(angle),
				Y: centerY + radius*math.Sin(angle),
			}
		}
	}

	return Result{Positions: pos}, nil
}
