package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"stock-intake/internal/catalog"
	"stock-intake/internal/common/logger"
	"stock-intake/internal/models"
)

// Config holds the reconciliation thresholds.
type Config struct {
	// FuzzyMatchThreshold: fuzzy matches below it carry suggestions for review.
	FuzzyMatchThreshold float64
	// ConfidenceWarning: any field strictly below it flags the item for review.
	ConfidenceWarning float64
	// UnmatchedFloor: fuzzy scores below it are treated as no match at all.
	UnmatchedFloor float64
	// MaxSuggestions caps the near-miss list attached to weak matches.
	MaxSuggestions int
}

func defaultConfig(cfg Config) Config {
	if cfg.FuzzyMatchThreshold == 0 {
		cfg.FuzzyMatchThreshold = 0.75
	}
	if cfg.ConfidenceWarning == 0 {
		cfg.ConfidenceWarning = 0.7
	}
	if cfg.UnmatchedFloor == 0 {
		cfg.UnmatchedFloor = 0.3
	}
	if cfg.MaxSuggestions == 0 {
		cfg.MaxSuggestions = 3
	}
	return cfg
}

const (
	confidenceExact           = 1.0
	confidenceCaseInsensitive = 0.95
)

// Reconciler matches the three extracted names of a line item against one
// catalog snapshot. It is stateless across calls and safe for concurrent use.
type Reconciler struct {
	cfg    Config
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Reconciler{cfg: defaultConfig(cfg), logger: log}
}

// candidate is one catalog entry eligible for a field.
type candidate struct {
	name string
	id   string
}

// Reconcile resolves one raw line item against the snapshot. The store
// candidate set is hard-filtered to the matched ASM's area before scoring; an
// unmatched ASM leaves no eligible stores.
func (r *Reconciler) Reconcile(item models.RawLineItem, snap *catalog.Snapshot) models.ReconciledLineItem {
	asmCands := make([]candidate, len(snap.ASMs))
	for i, m := range snap.ASMs {
		asmCands[i] = candidate{name: m.Name, id: m.AreaCode}
	}
	asm := r.matchName(item.ASMName, asmCands)

	var areaCode string
	var storeCands []candidate
	if asm.Matched() {
		if m, ok := snap.ASMByName(asm.Canonical); ok {
			areaCode = m.AreaCode
			for _, st := range snap.StoresInArea(areaCode) {
				storeCands = append(storeCands, candidate{name: st.StoreName, id: st.StoreID})
			}
		}
	}
	store := r.matchName(item.StoreName, storeCands)

	productCands := make([]candidate, len(snap.Products))
	for i, p := range snap.Products {
		productCands[i] = candidate{name: p.ProductName, id: p.SKUCode}
	}
	product := r.matchName(item.ProductName, productCands)

	rec := models.ReconciledLineItem{
		ID:         uuid.NewString(),
		ASM:        asm,
		Store:      store,
		Product:    product,
		AreaCode:   areaCode,
		StockStart: item.StockStart,
		StockEnd:   item.StockEnd,
		StockSold:  item.StockSold,
	}
	rec.NeedsReview, rec.ReviewReasons = r.reviewState(rec)

	if rec.NeedsReview {
		r.logger.Debug("Line item flagged for review", map[string]interface{}{
			"id":      rec.ID,
			"reasons": rec.ReviewReasons,
		})
	}
	return rec
}

// matchName runs the three matching tiers over the candidates in order:
// exact equality (1.0), case-insensitive equality (0.95), then fuzzy scoring
// on normalized strings. Ties on fuzzy score go to the shorter catalog name,
// then to the earlier candidate.
func (r *Reconciler) matchName(input string, candidates []candidate) models.MatchResult {
	input = strings.TrimSpace(input)
	result := models.MatchResult{Input: input, Strategy: models.StrategyUnmatched}
	if input == "" || len(candidates) == 0 {
		return result
	}

	for _, c := range candidates {
		if c.name == input {
			result.Canonical = c.name
			result.ID = c.id
			result.Confidence = confidenceExact
			result.Strategy = models.StrategyExact
			return result
		}
	}

	for _, c := range candidates {
		if strings.EqualFold(c.name, input) {
			result.Canonical = c.name
			result.ID = c.id
			result.Confidence = confidenceCaseInsensitive
			result.Strategy = models.StrategyCaseInsensitive
			return result
		}
	}

	normInput := Normalize(input)
	if normInput == "" {
		return result
	}

	type scored struct {
		candidate
		score float64
	}
	scores := make([]scored, len(candidates))
	best := -1
	for i, c := range candidates {
		scores[i] = scored{candidate: c, score: similarityRatio(normInput, Normalize(c.name))}
		if best < 0 ||
			scores[i].score > scores[best].score ||
			(scores[i].score == scores[best].score && len(scores[i].name) < len(scores[best].name)) {
			best = i
		}
	}

	suggest := func(exclude int) []models.Suggestion {
		ranked := make([]scored, 0, len(scores))
		for i, s := range scores {
			if i != exclude {
				ranked = append(ranked, s)
			}
		}
		sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
		n := r.cfg.MaxSuggestions
		if n > len(ranked) {
			n = len(ranked)
		}
		out := make([]models.Suggestion, 0, n)
		for _, s := range ranked[:n] {
			out = append(out, models.Suggestion{Name: s.name, ID: s.id, Score: s.score})
		}
		return out
	}

	if scores[best].score < r.cfg.UnmatchedFloor {
		result.Suggestions = suggest(-1)
		return result
	}

	result.Canonical = scores[best].name
	result.ID = scores[best].id
	result.Confidence = scores[best].score
	result.Strategy = models.StrategyFuzzy
	if result.Confidence < r.cfg.FuzzyMatchThreshold {
		result.Suggestions = suggest(best)
	}
	return result
}

// reviewState applies the review rules: any unmatched field, any confidence
// strictly below the warning threshold, or a missing mandatory sold count.
func (r *Reconciler) reviewState(rec models.ReconciledLineItem) (bool, []string) {
	var reasons []string

	check := func(field string, m models.MatchResult) {
		if !m.Matched() {
			reasons = append(reasons, field+"_unmatched")
			return
		}
		if m.Confidence < r.cfg.ConfidenceWarning {
			reasons = append(reasons, fmt.Sprintf("%s_confidence_%.2f", field, m.Confidence))
		}
	}
	check("asm", rec.ASM)
	check("store", rec.Store)
	check("product", rec.Product)

	if rec.StockSold == nil {
		reasons = append(reasons, "stock_sold_missing")
	}

	return len(reasons) > 0, reasons
}
