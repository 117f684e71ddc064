package fields

import "strings"

// buildPrompt asks for every physical line of the report as its own entry,
// preserving wording exactly so similar SKUs stay distinguishable.
func buildPrompt(rawText string) string {
	var parts []string

	parts = append(parts, "Extract ALL stock movement lines from this sales report:")
	parts = append(parts, "")
	parts = append(parts, rawText)
	parts = append(parts, "")
	parts = append(parts, "This is a multi-product stock report. Extract EVERY product line you can find.")
	parts = append(parts, "")
	parts = append(parts, "For each line, extract:")
	parts = append(parts, "1. nama_asm: the area sales manager name as written")
	parts = append(parts, "2. nama_toko: the store name as written")
	parts = append(parts, "3. nama_produk: the exact product text, including brand, variant, dosage and pack size")
	parts = append(parts, "4. stock_awal, stock_akhir, stock_terjual: the stock numbers if present")
	parts = append(parts, "")
	parts = append(parts, "Important rules:")
	parts = append(parts, "- Treat every physical line as a separate entry EVEN if the product name repeats. Never merge or sum lines.")
	parts = append(parts, `- Preserve wording and numbers exactly as written so similar SKUs remain distinguishable (e.g., "7 DAYS" vs "30 DAYS").`)
	parts = append(parts, "- Use null for any value that is not on the receipt. NEVER invent a value.")
	parts = append(parts, "- If a line appears twice, output two objects even if they look identical.")
	parts = append(parts, "")
	parts = append(parts, "Return a JSON array with this structure:")
	parts = append(parts, `[{"nama_asm": "Budi Santoso", "nama_toko": "Toko Maju Jaya", "nama_produk": "YOUVIT OMEGA-3 ANAK 30 DAYS", "stock_awal": 20, "stock_akhir": 15, "stock_terjual": 5}]`)
	parts = append(parts, "")
	parts = append(parts, "DO NOT include markdown or commentary. Return the raw JSON array only.")

	return strings.Join(parts, "\n")
}
