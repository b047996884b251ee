package preprocess

import (
	"math"
	"testing"

	"github.com/tracelens/investigation-engine/pkg/models"
)

func txLink(id, src, dst string, amount float64, date string) models.Link {
	return models.Link{
		ID:     id,
		Source: src,
		Target: dst,
		Type:   models.RelTransferred,
		Metadata: map[string]any{
			models.MetaAmount:          amount,
			models.MetaTransactionDate: date,
		},
	}
}

func TestDeduplicate_ReportsLaterOccurrences(t *testing.T) {
	links := []models.Link{
		txLink("l1", "A", "B", 5000, "2024-03-01 10:00:00"),
		txLink("l2", "A", "B", 5000, "2024-03-01 10:00:00"), // same fingerprint
		txLink("l3", "A", "B", 5000, "2024-03-01 11:00:00"), // different date
	}

	unique, dups := Deduplicate(links)

	if len(unique) != 2 {
		t.Fatalf("expected 2 unique links, got %d", len(unique))
	}
	if len(dups) != 1 {
		t.Fatalf("expected 1 duplicate record, got %d", len(dups))
	}
	if dups[0].OriginalID != "l1" || dups[0].DuplicateID != "l2" {
		t.Fatalf("expected duplicate pair (l1, l2), got (%s, %s)", dups[0].OriginalID, dups[0].DuplicateID)
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	links := []models.Link{
		txLink("l1", "A", "B", 5000, "2024-03-01"),
		txLink("l2", "A", "B", 5000, "2024-03-01"),
		txLink("l3", "B", "C", 2000, "2024-03-02"),
	}

	first, _ := Deduplicate(links)
	second, dups := Deduplicate(first)

	if len(second) != len(first) {
		t.Fatalf("second pass changed the set: %d vs %d", len(second), len(first))
	}
	if len(dups) != 0 {
		t.Fatalf("second pass reported %d duplicates, want 0", len(dups))
	}
}

func TestDeduplicate_MissingFieldsDefault(t *testing.T) {
	// Amount defaults to 0 and date to "" — two bare links on the same pair
	// must collide.
	links := []models.Link{
		{ID: "l1", Source: "A", Target: "B"},
		{ID: "l2", Source: "A", Target: "B"},
	}
	unique, dups := Deduplicate(links)
	if len(unique) != 1 || len(dups) != 1 {
		t.Fatalf("expected bare links to collide, got %d unique / %d dups", len(unique), len(dups))
	}
}

func TestAggregate_ConservesTotalAmount(t *testing.T) {
	links := []models.Link{
		txLink("l1", "A", "B", 1500, "2024-03-01"),
		txLink("l2", "A", "B", 2500, "2024-03-02"),
		txLink("l3", "A", "B", 1000, "2024-03-03"),
		txLink("l4", "B", "C", 7000, "2024-03-04"),
	}

	inputTotal := 0.0
	for _, l := range links {
		inputTotal += l.Amount()
	}

	out := Aggregate(links)

	outputTotal := 0.0
	for _, l := range out {
		outputTotal += l.Amount()
	}
	if math.Abs(inputTotal-outputTotal) > 1e-9 {
		t.Fatalf("aggregation lost money: in %.2f, out %.2f", inputTotal, outputTotal)
	}
}

func TestAggregate_MarksMergedGroups(t *testing.T) {
	links := []models.Link{
		txLink("l1", "A", "B", 1500, "2024-03-01"),
		txLink("l2", "A", "B", 2500, "2024-03-02"),
		txLink("l3", "B", "C", 7000, "2024-03-04"),
	}

	out := Aggregate(links)
	if len(out) != 2 {
		t.Fatalf("expected 2 aggregated links, got %d", len(out))
	}

	merged := out[0]
	if !models.ToBool(merged.Metadata[models.MetaIsAggregated]) {
		t.Fatalf("merged A→B group should carry isAggregated")
	}
	if count, _ := merged.Metadata[models.MetaTransactionCount].(int); count != 2 {
		t.Fatalf("expected transactionCount=2, got %v", merged.Metadata[models.MetaTransactionCount])
	}
	if total, _ := models.ToFloat(merged.Metadata[models.MetaTotalAmount]); total != 4000 {
		t.Fatalf("expected totalAmount=4000, got %v", total)
	}
	txs, ok := merged.Metadata[models.MetaIndividualTransactions].([]individualTransaction)
	if !ok || len(txs) != 2 {
		t.Fatalf("expected 2 retained individual transactions, got %v", merged.Metadata[models.MetaIndividualTransactions])
	}

	// Single-member group passes through with its original shape.
	passthrough := out[1]
	if passthrough.ID != "l3" {
		t.Fatalf("expected l3 passthrough, got %s", passthrough.ID)
	}
	if models.ToBool(passthrough.Metadata[models.MetaIsAggregated]) {
		t.Fatalf("count=1 group must not be marked aggregated")
	}
}

func TestFilterByAmount_DefaultFloor(t *testing.T) {
	links := []models.Link{
		txLink("l1", "A", "B", 999, "2024-03-01"),
		txLink("l2", "A", "C", 1000, "2024-03-01"), // exactly at the floor survives
		txLink("l3", "A", "D", 50000, "2024-03-01"),
	}

	out := FilterByAmount(links, DefaultMinAmount)
	if len(out) != 2 {
		t.Fatalf("expected 2 links above the floor, got %d", len(out))
	}
	if out[0].ID != "l2" || out[1].ID != "l3" {
		t.Fatalf("unexpected surviving links: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestRun_PipelineOrder(t *testing.T) {
	// Two duplicates of a small transfer aggregate to 800 — still below the
	// floor, proving dedup runs before aggregation and the filter sees the
	// aggregated total.
	links := []models.Link{
		txLink("l1", "A", "B", 800, "2024-03-01"),
		txLink("l2", "A", "B", 800, "2024-03-01"), // duplicate, removed first
		txLink("l3", "A", "B", 700, "2024-03-02"),
		txLink("l4", "B", "C", 3000, "2024-03-03"),
	}

	res := Run(links, DefaultOptions())

	if len(res.Duplicates) != 1 {
		t.Fatalf("expected 1 duplicate, got %d", len(res.Duplicates))
	}
	// A→B aggregates to 800+700=1500 ≥ 1000, B→C passes at 3000.
	if len(res.Links) != 2 {
		t.Fatalf("expected 2 surviving links, got %d", len(res.Links))
	}
	if got := res.Links[0].Amount(); got != 1500 {
		t.Fatalf("expected aggregated amount 1500, got %.2f", got)
	}
}
