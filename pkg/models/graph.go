package models

import "math"

// Entity type catalog for investigation graph nodes.
const (
	EntityAccount  = "account"
	EntityPerson   = "person"
	EntityPhone    = "phone"
	EntityDocument = "document"
)

// Relationship kinds carried on links.
const (
	RelTransferred = "TRANSFERRED"
	RelCalled      = "CALLED"
	RelConnected   = "CONNECTED"
)

// Risk levels assigned to nodes by upstream intake.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
	RiskUnknown  = "unknown"
)

// Recognized node metadata keys. Metadata is an open mapping; these are the
// keys the engine itself reads or writes.
const (
	MetaLayer            = "layer"
	MetaAmount           = "amount"
	MetaTransactionDate  = "transaction_date"
	MetaBankName         = "bank_name"
	MetaIFSCCode         = "ifsc_code"
	MetaAccountNumber    = "account_number"
	MetaIsTerminal       = "is_terminal"
	MetaIsVictimToVictim = "is_victim_to_victim"
	MetaClassification   = "classification"
)

// Link metadata keys written by the preprocessor and pattern detector.
const (
	MetaIsAggregated           = "isAggregated"
	MetaTransactionCount       = "transactionCount"
	MetaTotalAmount            = "totalAmount"
	MetaIndividualTransactions = "individualTransactions"
	MetaIsRapid                = "isRapid"
	MetaIsCircular             = "isCircular"
	MetaSankeyWidth            = "sankeyWidth"
	MetaSankeyColor            = "sankeyColor"
)

// Node is a single entity in the investigation graph. ID is immutable once
// created; X/Y are mutated by layout runs and drags.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	RiskLevel  string         `json:"risk_level"`
	Confidence float64        `json:"confidence"` // 0-100
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Link is a typed relationship between two nodes. Source and Target must
// reference existing node IDs; dangling links are dropped from computation.
type Link struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Position is a 2-D world-space coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether the position can be persisted externally.
// NaN/Inf coordinates must never leave the engine.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// PositionMap is the output of a layout strategy: node id → coordinates.
type PositionMap map[string]Position

// Clone returns an independent copy of the map.
func (m PositionMap) Clone() PositionMap {
	out := make(PositionMap, len(m))
	for id, p := range m {
		out[id] = p
	}
	return out
}

// DeclaredLayer returns the metadata layer when one is actually present.
// The classifier's seed rule fires only on a declared layer 1; an absent
// layer must not default a quiet account into SUSPECT.
func (n *Node) DeclaredLayer() (int, bool) {
	if n.Metadata == nil {
		return 0, false
	}
	v, ok := ToFloat(n.Metadata[MetaLayer])
	if !ok || v < 0 {
		return 0, false
	}
	return int(v), true
}

// Layer returns the metadata layer with the layout default of 1 when absent
// or non-finite. Layer 1 is the distinguished seed layer.
func (n *Node) Layer() int {
	if v, ok := n.DeclaredLayer(); ok {
		return v
	}
	return 1
}

// Amount returns the transaction amount carried in node metadata, 0 when
// absent or unparsable.
func (n *Node) Amount() float64 {
	if n.Metadata == nil {
		return 0
	}
	v, _ := ToFloat(n.Metadata[MetaAmount])
	return v
}

// Amount returns the effective amount of the link: the aggregated total when
// the preprocessor has merged this link, otherwise the per-transaction amount.
// Unparsable values silently default to 0 (known accuracy tradeoff, the
// classifier consumes these values without erroring).
func (l *Link) Amount() float64 {
	if l.Metadata == nil {
		return 0
	}
	if v, ok := ToFloat(l.Metadata[MetaTotalAmount]); ok {
		return v
	}
	v, _ := ToFloat(l.Metadata[MetaAmount])
	return v
}

// Clone returns a copy of the link with its own metadata map, so annotation
// passes never write through to the caller's link set.
func (l Link) Clone() Link {
	if l.Metadata == nil {
		return l
	}
	meta := make(map[string]any, len(l.Metadata))
	for k, v := range l.Metadata {
		meta[k] = v
	}
	l.Metadata = meta
	return l
}

// Meta returns the metadata map, allocating it on first use.
func (l *Link) Meta() map[string]any {
	if l.Metadata == nil {
		l.Metadata = make(map[string]any)
	}
	return l.Metadata
}
