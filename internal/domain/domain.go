package domain

type SummaryRequest struct {
	Text        string
	TargetWords int
}

// Source tells which path produced a summary.
type Source string

const (
	SourceTool     Source = "tool"
	SourceFallback Source = "fallback"
)

type SummaryResult struct {
	Text   string
	Source Source
}

type Stats struct {
	OriginalWords    int
	SummaryWords     int
	ReductionPercent float64
}
