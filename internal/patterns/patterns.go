package patterns

import (
	"sort"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Laundering Pattern Detection Module
//
// Operates on the classified, preprocessed link set and surfaces the three
// structural signatures investigators look for first:
//
//   - Rapid forwarding: mule accounts that moved received funds on in <1h
//   - Splitting: one source fanning out to many targets (structuring)
//   - Circular flows: funds routed back to an earlier account in the chain
//
// Severity bands follow the alerts panel conventions: "high" / "medium".

const (
	rapidHighSeverityHours = 0.5
	splittingMinOutgoing   = 10
	splittingHighTargets   = 20
)

// Detect runs all detectors and bundles the report. Duplicates come from the
// preprocessor's audit trail and are passed through for the alerts panel.
func Detect(links []models.Link, classifications map[string]models.AccountClassification, duplicates []models.DuplicateRecord) models.PatternReport {
	report := models.PatternReport{
		RapidForwards:     DetectRapidForwards(classifications),
		SplittingPatterns: DetectSplitting(links),
		CircularFlows:     DetectCircularFlows(links),
		Duplicates:        duplicates,
	}
	if report.Duplicates == nil {
		report.Duplicates = []models.DuplicateRecord{}
	}
	return report
}

// DetectRapidForwards reports every MULE-classified account that forwarded
// within the hour. Severity is high under 30 minutes, medium otherwise.
func DetectRapidForwards(classifications map[string]models.AccountClassification) []models.RapidForward {
	var out []models.RapidForward
	for _, c := range classifications {
		if c.Classification != models.ClassMule || c.TimeToForwardHours >= 1 {
			continue
		}
		severity := "medium"
		if c.TimeToForwardHours < rapidHighSeverityHours {
			severity = "high"
		}
		out = append(out, models.RapidForward{
			AccountID:          c.AccountID,
			TimeToForwardHours: c.TimeToForwardHours,
			ForwardRatio:       c.ForwardRatio,
			Severity:           severity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	if out == nil {
		out = []models.RapidForward{}
	}
	return out
}

// DetectSplitting reports sources with ≥10 outgoing links. Severity escalates
// to high past 20 distinct targets.
func DetectSplitting(links []models.Link) []models.SplittingPattern {
	type fanOut struct {
		count   int
		targets map[string]bool
		total   float64
	}
	bySource := make(map[string]*fanOut)
	var order []string

	for _, l := range links {
		f, ok := bySource[l.Source]
		if !ok {
			f = &fanOut{targets: make(map[string]bool)}
			bySource[l.Source] = f
			order = append(order, l.Source)
		}
		f.count++
		f.targets[l.Target] = true
		f.total += l.Amount()
	}

	var out []models.SplittingPattern
	for _, src := range order {
		f := bySource[src]
		if f.count < splittingMinOutgoing {
			continue
		}
		severity := "medium"
		if len(f.targets) > splittingHighTargets {
			severity = "high"
		}
		out = append(out, models.SplittingPattern{
			SourceID:        src,
			OutgoingLinks:   f.count,
			DistinctTargets: len(f.targets),
			TotalAmount:     f.total,
			AverageAmount:   f.total / float64(f.count),
			Severity:        severity,
		})
	}
	if out == nil {
		out = []models.SplittingPattern{}
	}
	return out
}

// MarkLinks annotates the link set in place with isRapid / isCircular flags
// consumed by the layered-sankey styling pass. Flags are written for every
// link, not just matches: a run reflects exactly its own report, never a
// previous one.
func MarkLinks(links []models.Link, report models.PatternReport) {
	rapid := make(map[string]bool, len(report.RapidForwards))
	for _, r := range report.RapidForwards {
		rapid[r.AccountID] = true
	}

	cyclic := make(map[string]bool)
	for _, c := range report.CircularFlows {
		for i, id := range c.Path {
			next := c.Path[(i+1)%len(c.Path)]
			cyclic[id+"→"+next] = true
		}
	}

	for i := range links {
		l := &links[i]
		l.Meta()[models.MetaIsRapid] = rapid[l.Source]
		l.Meta()[models.MetaIsCircular] = cyclic[l.Source+"→"+l.Target]
	}
}
