package layout

import (
	"math"
	"math/rand"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Force-Directed Layout
//
// Classic spring-embedder: inverse-square pairwise repulsion plus Hooke's-law
// springs along links, integrated with explicit Euler steps. No damping
// beyond the force balance itself and no cancellation — the all-pairs loop is
// O(iterations × n²), acceptable only for graphs of a few hundred nodes and a
// known scalability limit of this strategy.

const (
	forceIterations   = 30
	repulsionStrength = 4500
	minRepulsionDist  = 1 // distance floor, avoids division blow-up
	springRestLength  = 220
	springStiffness   = 0.12
)

// Force assigns positions by force simulation. Nodes lacking a usable
// position are seeded at a uniform-random point inside the container.
func Force(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	pos := make(models.PositionMap, len(nodes))
	for _, n := range nodes {
		p := models.Position{X: n.X, Y: n.Y}
		if !p.Finite() || (p.X == 0 && p.Y == 0) {
			p = models.Position{X: rand.Float64() * c.Width, Y: rand.Float64() * c.Height}
		}
		pos[n.ID] = p
	}

	live := liveLinks(nodes, links)
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	for iter := 0; iter < forceIterations; iter++ {
		disp := make(map[string]models.Position, len(ids))

		// Pairwise repulsion.
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := pos[ids[i]], pos[ids[j]]
				dx := a.X - b.X
				dy := a.Y - b.Y
				dist := math.Hypot(dx, dy)
				if dist < minRepulsionDist {
					dist = minRepulsionDist
					// coincident nodes get a nudge on a fixed axis
					if dx == 0 && dy == 0 {
						dx = 1
					}
				}
				force := repulsionStrength / (dist * dist)
				ux, uy := dx/dist, dy/dist
				da := disp[ids[i]]
				da.X += ux * force
				da.Y += uy * force
				disp[ids[i]] = da
				db := disp[ids[j]]
				db.X -= ux * force
				db.Y -= uy * force
				disp[ids[j]] = db
			}
		}

		// Spring force per link toward the rest length.
		for _, l := range live {
			a, b := pos[l.Source], pos[l.Target]
			dx := b.X - a.X
			dy := b.Y - a.Y
			dist := math.Hypot(dx, dy)
			if dist < minRepulsionDist {
				dist = minRepulsionDist
			}
			force := (dist - springRestLength) * springStiffness
			ux, uy := dx/dist, dy/dist
			da := disp[l.Source]
			da.X += ux * force
			da.Y += uy * force
			disp[l.Source] = da
			db := disp[l.Target]
			db.X -= ux * force
			db.Y -= uy * force
			disp[l.Target] = db
		}

		// Euler update.
		for _, id := range ids {
			p := pos[id]
			d := disp[id]
			p.X += d.X
			p.Y += d.Y
			pos[id] = p
		}
	}

	return Result{Positions: pos}, nil
}
