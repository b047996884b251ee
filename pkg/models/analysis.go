package models

// Account classification labels, in precedence order.
const (
	ClassSuspect      = "SUSPECT"      // seed-layer account (layer 1)
	ClassEndpoint     = "ENDPOINT"     // receives and never forwards
	ClassMule         = "MULE"         // rapid pass-through of received funds
	ClassIntermediate = "INTERMEDIATE" // everything else
)

// AccountClassification is the per-account behavioral verdict, recomputed
// wholesale on every layered-sankey run or explicit classification request.
type AccountClassification struct {
	AccountID          string  `json:"accountId"`
	Classification     string  `json:"classification"`
	Confidence         float64 `json:"confidence"` // 0.0 - 1.0
	Color              string  `json:"color"`
	TotalIn            float64 `json:"totalIn"`
	TotalOut           float64 `json:"totalOut"`
	IncomingCount      int     `json:"incomingCount"`
	OutgoingCount      int     `json:"outgoingCount"`
	ForwardRatio       float64 `json:"forwardRatio"`       // totalOut / totalIn
	TimeToForwardHours float64 `json:"timeToForwardHours"` // +Inf when undefined
}

// RapidForward flags a mule account that forwarded funds in under an hour.
type RapidForward struct {
	AccountID          string  `json:"accountId"`
	TimeToForwardHours float64 `json:"timeToForwardHours"`
	ForwardRatio       float64 `json:"forwardRatio"`
	Severity           string  `json:"severity"` // "high" (<30 min) or "medium"
}

// SplittingPattern flags a source account fanning out to many targets.
type SplittingPattern struct {
	SourceID        string  `json:"sourceId"`
	OutgoingLinks   int     `json:"outgoingLinks"`
	DistinctTargets int     `json:"distinctTargets"`
	TotalAmount     float64 `json:"totalAmount"`
	AverageAmount   float64 `json:"averageAmount"`
	Severity        string  `json:"severity"` // "high" (>20 targets) or "medium"
}

// CircularFlow is a closed directed path of accounts.
type CircularFlow struct {
	Path   []string `json:"path"` // first node is the cycle entry, not repeated at the end
	Length int      `json:"length"`
}

// DuplicateRecord reports a transaction link dropped by deduplication.
type DuplicateRecord struct {
	OriginalID  string `json:"originalId"`
	DuplicateID string `json:"duplicateId"`
	Fingerprint string `json:"fingerprint"`
}

// PatternReport bundles everything the pattern-alerts panel consumes.
type PatternReport struct {
	RapidForwards     []RapidForward     `json:"rapidForwards"`
	SplittingPatterns []SplittingPattern `json:"splittingPatterns"`
	CircularFlows     []CircularFlow     `json:"circularFlows"`
	Duplicates        []DuplicateRecord  `json:"duplicates"`
}

// ClassificationColor maps a classification label to its display color.
// Deterministic: the alerts panel and the layered-sankey styling both key
// off these exact values.
func ClassificationColor(class string) string {
	switch class {
	case ClassSuspect:
		return "red"
	case ClassEndpoint:
		return "green"
	case ClassMule:
		return "orange"
	case ClassIntermediate:
		return "blue"
	default:
		return "gray"
	}
}
