// Package models holds the data types shared across the intake pipeline.
package models

// RawLineItem is one stock movement as extracted from a receipt photo, before
// reconciliation. Field names follow the upstream model output contract; nil
// pointers mean the value was absent from the photo, never fabricated.
type RawLineItem struct {
	ASMName     string `json:"nama_asm"`
	StoreName   string `json:"nama_toko"`
	ProductName string `json:"nama_produk"`
	StockStart  *int   `json:"stock_awal"`
	StockEnd    *int   `json:"stock_akhir"`
	StockSold   *int   `json:"stock_terjual"`
}

// Strategy names the tier that produced a match.
type Strategy string

const (
	StrategyExact           Strategy = "exact"
	StrategyCaseInsensitive Strategy = "case_insensitive"
	StrategyFuzzy           Strategy = "fuzzy"
	StrategyUnmatched       Strategy = "unmatched"
)

// Suggestion is a near-miss candidate offered to a reviewer.
type Suggestion struct {
	Name  string  `json:"name"`
	ID    string  `json:"id,omitempty"`
	Score float64 `json:"score"`
}

// MatchResult records how one extracted name resolved against the catalog.
// Canonical and ID are empty when Strategy is unmatched.
type MatchResult struct {
	Input       string       `json:"input"`
	Canonical   string       `json:"canonical,omitempty"`
	ID          string       `json:"id,omitempty"`
	Confidence  float64      `json:"confidence"`
	Strategy    Strategy     `json:"strategy"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Matched reports whether the field resolved to a catalog entry.
func (m MatchResult) Matched() bool {
	return m.Strategy != StrategyUnmatched
}

// ReconciledLineItem is a raw line item after all three fields were matched
// against one reference snapshot.
type ReconciledLineItem struct {
	ID            string      `json:"id"`
	ASM           MatchResult `json:"asm"`
	Store         MatchResult `json:"store"`
	Product       MatchResult `json:"product"`
	AreaCode      string      `json:"area_code,omitempty"`
	StockStart    *int        `json:"stock_awal"`
	StockEnd      *int        `json:"stock_akhir"`
	StockSold     *int        `json:"stock_terjual"`
	NeedsReview   bool        `json:"needs_review"`
	ReviewReasons []string    `json:"review_reasons,omitempty"`
}
