package domain

import "time"

// Paper is a core entity describing article metadata fetched from arXiv.
// Immutable once fetched.
type Paper struct {
	Title         string
	Authors       []string
	Abstract      string
	ArxivID       string
	PublishedDate time.Time
	Categories    []string
	PDFURL        string
	ArxivURL      string
}

// Analysis captures the model's judgment about a single paper. Created once,
// never mutated, paired 1:1 with a Paper before persistence.
type Analysis struct {
	Tags           []string
	RelevanceScore float64
	KeyInsights    []string
	Methodology    string
}

// Status enumerates the review workflow of a persisted record. Records are
// created New; later transitions happen outside this system.
type Status string

const (
	StatusNew      Status = "New"
	StatusReviewed Status = "Reviewed"
	StatusRejected Status = "Rejected"
)

// RecordView is the flattened read shape of a persisted record. Text fields
// are already concatenated from the store's rich-text runs and multi-select
// fields mapped to plain name lists.
type RecordView struct {
	ID             string
	Title          string
	Authors        string
	Abstract       string
	ArxivID        string
	PublishedDate  string
	Categories     []string
	ArxivURL       string
	Tags           []string
	RelevanceScore float64
	KeyInsights    string
	Methodology    string
	Status         Status
}

// ProcessedPaper summarizes a single newly inserted record for manual runs.
type ProcessedPaper struct {
	Title          string
	ArxivID        string
	RelevanceScore float64
	RecordID       string
}
