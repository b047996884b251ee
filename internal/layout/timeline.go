package layout

import (
	"hash/fnv"
	"time"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Timeline Layout
//
// X position is proportional to the account's first transaction time across
// the case window; Y is the layer band plus a small deterministic jitter so
// simultaneous accounts do not stack. Accounts with no parsable transaction
// time sit at the left edge.

const (
	timelineBandHeight = 260
	timelineJitter     = 90
)

// Timeline positions nodes chronologically on the x axis.
func Timeline(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	live := liveLinks(nodes, links)

	firstSeen := make(map[string]time.Time)
	note := func(id string, t time.Time) {
		if t.IsZero() {
			return
		}
		if existing, ok := firstSeen[id]; !ok || t.Before(existing) {
			firstSeen[id] = t
		}
	}
	var minT, maxT time.Time
	for _, l := range live {
		t := l.Time()
		note(l.Source, t)
		note(l.Target, t)
		if t.IsZero() {
			continue
		}
		if minT.IsZero() || t.Before(minT) {
			minT = t
		}
		if maxT.IsZero() || t.After(maxT) {
			maxT = t
		}
	}
	window := maxT.Sub(minT)

	pos := make(models.PositionMap, len(nodes))
	for _, n := range nodes {
		x := 0.0
		if t, ok := firstSeen[n.ID]; ok && window > 0 {
			x = (t.Sub(minT).Seconds() / window.Seconds()) * c.Width
		}
		band := float64(n.Layer()) * timelineBandHeight
		pos[n.ID] = models.Position{
			X: x,
			Y: band + jitter(n.ID),
		}
	}

	return Result{
		Positions: pos,
		Viewport:  fitViewport(pos, c, treeMinZoom, treeMaxZoom),
	}, nil
}

// jitter is a stable per-id vertical offset in [-timelineJitter/2, +timelineJitter/2).
// Hash-based rather than random so the layout stays a pure function of the graph.
func jitter(id string) float64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return float64(h.Sum32()%timelineJitter) - timelineJitter/2
}
