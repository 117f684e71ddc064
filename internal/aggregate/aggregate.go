// Package aggregate rolls reconciled line items up into per-product totals.
package aggregate

import "stock-intake/internal/models"

// ProductTotal is the roll-up for one product across a batch. Unmatched
// products group under their raw extracted name with an empty SKU.
type ProductTotal struct {
	SKUCode     string `json:"sku_code,omitempty"`
	ProductName string `json:"product_name"`
	StockSold   int    `json:"stock_terjual"`
	LineItems   int    `json:"line_items"`
	NeedsReview int    `json:"needs_review"`
	// MeanConfidence averages the product match confidence over the
	// contributing line items.
	MeanConfidence float64 `json:"mean_confidence"`

	confidenceSum float64
}

// Summary holds batch-level product totals in first-seen order.
type Summary struct {
	Products []ProductTotal `json:"products"`
	// SoldTotal sums stock_terjual over every line item with a value.
	SoldTotal int `json:"sold_total"`
	// SkippedNoSold counts line items excluded from SoldTotal because no
	// sold count could be extracted or derived.
	SkippedNoSold int `json:"skipped_no_sold"`
}

// Batch rolls up every reconciled line item in the batch results. Failed
// items contribute nothing.
func Batch(results []models.ItemResult) Summary {
	byKey := map[string]int{}
	summary := Summary{}

	for _, result := range results {
		if result.Failed() {
			continue
		}
		for _, item := range result.Items {
			key := "sku:" + item.Product.ID
			name := item.Product.Canonical
			if !item.Product.Matched() {
				key = "raw:" + item.Product.Input
				name = item.Product.Input
			}

			idx, seen := byKey[key]
			if !seen {
				idx = len(summary.Products)
				byKey[key] = idx
				summary.Products = append(summary.Products, ProductTotal{
					SKUCode:     item.Product.ID,
					ProductName: name,
				})
			}

			total := &summary.Products[idx]
			total.LineItems++
			total.confidenceSum += item.Product.Confidence
			if item.NeedsReview {
				total.NeedsReview++
			}
			if item.StockSold != nil {
				total.StockSold += *item.StockSold
				summary.SoldTotal += *item.StockSold
			} else {
				summary.SkippedNoSold++
			}
		}
	}

	for i := range summary.Products {
		summary.Products[i].MeanConfidence = summary.Products[i].confidenceSum / float64(summary.Products[i].LineItems)
	}
	return summary
}
