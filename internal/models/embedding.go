package models

import "fmt"

// TextUnit is one page's extracted text. PageIndex is 0-based.
type TextUnit struct {
	Content    string `json:"content"`
	PageIndex  int    `json:"page_index"`
	SourceName string `json:"source_name"`
}

// PageNumber returns the 1-based page number shown to users.
func (u TextUnit) PageNumber() int {
	return u.PageIndex + 1
}

// EmbeddingRecord pairs a unit with its embedding vector
type EmbeddingRecord struct {
	Unit   TextUnit
	Vector []float32
}

// ScoredUnit is a search hit. Distance is 1 - cosine similarity.
type ScoredUnit struct {
	Unit     TextUnit
	Distance float32
}

// PageRange is an inclusive, 0-based page window.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FullRange covers every page of a document with total pages.
func FullRange(total int) PageRange {
	if total <= 0 {
		return PageRange{}
	}
	return PageRange{Start: 0, End: total - 1}
}

// NewPageRange1Based converts a 1-based selection from the UI into a 0-based range.
func NewPageRange1Based(start, end, total int) (PageRange, error) {
	if total <= 0 {
		return PageRange{}, fmt.Errorf("document has no pages")
	}
	if start < 1 || start > total {
		return PageRange{}, fmt.Errorf("start page %d out of bounds [1, %d]", start, total)
	}
	if end < start || end > total {
		return PageRange{}, fmt.Errorf("end page %d out of bounds [%d, %d]", end, start, total)
	}
	return PageRange{Start: start - 1, End: end - 1}, nil
}

// Contains reports whether pageIndex lies within the range.
func (r PageRange) Contains(pageIndex int) bool {
	return r.Start <= pageIndex && pageIndex <= r.End
}

// Validate checks start <= end <= lastPageIndex.
func (r PageRange) Validate(lastPageIndex int) error {
	if r.Start < 0 || r.End < r.Start || r.End > lastPageIndex {
		return fmt.Errorf("invalid page range [%d, %d] for last page index %d", r.Start, r.End, lastPageIndex)
	}
	return nil
}

// String renders the range in 1-based pages.
func (r PageRange) String() string {
	return fmt.Sprintf("pages %d to %d", r.Start+1, r.End+1)
}

// ChatTurn is a single message in a session's chat history
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Answer is what the pipeline hands back to the presentation layer.
type Answer struct {
	Text       string `json:"text"`
	CitedPages []int  `json:"cited_pages"`
	Greeting   bool   `json:"greeting,omitempty"`
	Refused    bool   `json:"refused,omitempty"`
}
