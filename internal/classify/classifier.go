package classify

import (
	"math"
	"time"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Account Classification Module
//
// Classifies each account's role in a laundering chain from its aggregated
// flow. The rules mirror how analysts read a statement: the victim-adjacent
// seed accounts are suspects, accounts that swallow funds are endpoints, and
// accounts that forward most of what they receive within the hour are mules.
//
// Evaluated in fixed precedence order, first match wins:
//
//   1. layer == 1                              → SUSPECT      (1.0)
//   2. no outgoing, ≥1 incoming                → ENDPOINT     (1.0)
//   3. timeToForward < 1h, forwardRatio > 0.8  → MULE         (0.9)
//   4. otherwise                               → INTERMEDIATE (0.5)
//
// Pure over its inputs: recomputed wholesale whenever the link set changes,
// never incrementally updated.

const (
	muleForwardRatio   = 0.8
	muleForwardWindowH = 1.0
)

// Classify computes the classification for one account against the finalized
// (preprocessed) link set. The layer comes from node metadata when the node is
// known; pass nil for accounts only seen on links.
func Classify(accountID string, node *models.Node, links []models.Link) models.AccountClassification {
	c := models.AccountClassification{
		AccountID:          accountID,
		TimeToForwardHours: math.Inf(1),
	}

	var earliestIn, earliestOut time.Time
	for _, l := range links {
		amount := l.Amount()
		t := l.Time()
		switch {
		case l.Target == accountID:
			c.IncomingCount++
			c.TotalIn += amount
			if !t.IsZero() && (earliestIn.IsZero() || t.Before(earliestIn)) {
				earliestIn = t
			}
		case l.Source == accountID:
			c.OutgoingCount++
			c.TotalOut += amount
			if !t.IsZero() && (earliestOut.IsZero() || t.Before(earliestOut)) {
				earliestOut = t
			}
		}
	}

	if c.TotalIn > 0 {
		c.ForwardRatio = c.TotalOut / c.TotalIn
	}
	if !earliestIn.IsZero() && !earliestOut.IsZero() {
		c.TimeToForwardHours = earliestOut.Sub(earliestIn).Hours()
	}

	layer, hasLayer := 0, false
	if node != nil {
		layer, hasLayer = node.DeclaredLayer()
	}

	switch {
	case hasLayer && layer == 1:
		c.Classification = models.ClassSuspect
		c.Confidence = 1.0
	case c.OutgoingCount == 0 && c.IncomingCount > 0:
		c.Classification = models.ClassEndpoint
		c.Confidence = 1.0
	case c.TimeToForwardHours < muleForwardWindowH && c.ForwardRatio > muleForwardRatio:
		c.Classification = models.ClassMule
		c.Confidence = 0.9
	default:
		c.Classification = models.ClassIntermediate
		c.Confidence = 0.5
	}
	c.Color = models.ClassificationColor(c.Classification)
	return c
}

// ClassifyAll classifies every account touched by the link set. Nodes supply
// declared layers where known.
func ClassifyAll(nodes []models.Node, links []models.Link) map[string]models.AccountClassification {
	byID := make(map[string]*models.Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	touched := make(map[string]bool)
	for _, l := range links {
		touched[l.Source] = true
		touched[l.Target] = true
	}

	out := make(map[string]models.AccountClassification, len(touched))
	for id := range touched {
		out[id] = Classify(id, byID[id], links)
	}
	return out
}
