package preprocess

import (
	"fmt"
	"strconv"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Transaction Preprocessing Module
//
// Raw transaction link sets exported from bank statements are noisy: the same
// transfer appears in both parties' statements, a single account pair can
// carry hundreds of individual transfers, and dust-sized amounts drown the
// picture. Three stages make the set tractable for visualization and
// pattern detection, applied strictly in order:
//
//   1. Deduplicate — drop repeated records by transaction fingerprint
//   2. Aggregate   — merge all links of an ordered (source, target) pair
//   3. FilterByAmount — drop links below the amount floor
//
// The layered-sankey layout runs this full pipeline; every other layout
// consumes raw links.

// DefaultMinAmount is the amount floor applied when the caller does not
// override it. Minor-unit agnostic: treated as a plain numeric threshold.
const DefaultMinAmount = 1000

// Options controls the pipeline stages.
type Options struct {
	Aggregate bool    // merge per account pair (default on)
	MinAmount float64 // amount floor, applied after aggregation
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{Aggregate: true, MinAmount: DefaultMinAmount}
}

// Result carries the cleaned link set plus the dedup audit trail.
type Result struct {
	Links      []models.Link
	Duplicates []models.DuplicateRecord
}

// Run applies dedup → aggregate → filter in order.
func Run(links []models.Link, opts Options) Result {
	unique, dups := Deduplicate(links)
	if opts.Aggregate {
		unique = Aggregate(unique)
	}
	unique = FilterByAmount(unique, opts.MinAmount)
	return Result{Links: unique, Duplicates: dups}
}

// Fingerprint builds the duplicate-detection key for a link:
// source|target|amount|transaction_date. Amount defaults to 0 and the date to
// the empty string when absent, so two records missing both fields still
// collide when they join the same pair.
func Fingerprint(l models.Link) string {
	amount := 0.0
	if l.Metadata != nil {
		amount, _ = models.ToFloat(l.Metadata[models.MetaAmount])
	}
	date := ""
	if l.Metadata != nil {
		if v, ok := l.Metadata[models.MetaTransactionDate]; ok && v != nil {
			date = fmt.Sprintf("%v", v)
		}
	}
	return l.Source + "|" + l.Target + "|" + strconv.FormatFloat(amount, 'f', -1, 64) + "|" + date
}

// Deduplicate keeps the first occurrence per fingerprint and reports every
// later occurrence for the audit panel. Pure: no input mutation, and feeding
// its output back through is a no-op.
func Deduplicate(links []models.Link) ([]models.Link, []models.DuplicateRecord) {
	seen := make(map[string]string, len(links)) // fingerprint → original link id
	unique := make([]models.Link, 0, len(links))
	var dups []models.DuplicateRecord

	for _, l := range links {
		fp := Fingerprint(l)
		if origID, ok := seen[fp]; ok {
			dups = append(dups, models.DuplicateRecord{
				OriginalID:  origID,
				DuplicateID: l.ID,
				Fingerprint: fp,
			})
			continue
		}
		seen[fp] = l.ID
		unique = append(unique, l)
	}
	return unique, dups
}

// individualTransaction is the retained record of one constituent transfer
// inside an aggregated link.
type individualTransaction struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

// Aggregate merges all links sharing an ordered (source → target) pair into a
// single link carrying the summed amount, the transaction count, and the
// constituent transfers under individualTransactions. Groups of one pass
// through with their original label; larger groups are marked isAggregated.
// Total amount is conserved across the merge.
func Aggregate(links []models.Link) []models.Link {
	type group struct {
		first models.Link
		total float64
		txs   []individualTransaction
	}

	groups := make(map[string]*group)
	var order []string // deterministic output order by first appearance

	for _, l := range links {
		key := l.Source + "→" + l.Target
		g, ok := groups[key]
		if !ok {
			g = &group{first: l}
			groups[key] = g
			order = append(order, key)
		}
		amount := 0.0
		if l.Metadata != nil {
			amount, _ = models.ToFloat(l.Metadata[models.MetaAmount])
		}
		date := ""
		if l.Metadata != nil {
			if v, ok := l.Metadata[models.MetaTransactionDate]; ok && v != nil {
				date = fmt.Sprintf("%v", v)
			}
		}
		g.total += amount
		g.txs = append(g.txs, individualTransaction{ID: l.ID, Amount: amount, Date: date})
	}

	out := make([]models.Link, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		if len(g.txs) == 1 {
			out = append(out, g.first)
			continue
		}

		merged := g.first
		meta := make(map[string]any, len(g.first.Metadata)+4)
		for k, v := range g.first.Metadata {
			meta[k] = v
		}
		meta[models.MetaIsAggregated] = true
		meta[models.MetaTransactionCount] = len(g.txs)
		meta[models.MetaTotalAmount] = g.total
		meta[models.MetaIndividualTransactions] = g.txs
		merged.Metadata = meta
		merged.Label = fmt.Sprintf("%d transfers, %.2f total", len(g.txs), g.total)
		out = append(out, merged)
	}
	return out
}

// FilterByAmount drops links whose effective amount (aggregated total, falling
// back to the per-transaction amount) is below the threshold.
func FilterByAmount(links []models.Link, minAmount float64) []models.Link {
	if minAmount <= 0 {
		return links
	}
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		if l.Amount() >= minAmount {
			out = append(out, l)
		}
	}
	return out
}
