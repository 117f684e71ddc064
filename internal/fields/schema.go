// Package fields extracts structured line items from recognized receipt text.
package fields

// lineItemSchema validates the shape of one extracted line item after
// numeric coercion. Names may be empty strings when absent from the photo;
// stock values are integers or null, never invented.
var lineItemSchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"nama_asm":      map[string]interface{}{"type": "string"},
			"nama_toko":     map[string]interface{}{"type": "string"},
			"nama_produk":   map[string]interface{}{"type": "string"},
			"stock_awal":    map[string]interface{}{"type": []string{"integer", "null"}},
			"stock_akhir":   map[string]interface{}{"type": []string{"integer", "null"}},
			"stock_terjual": map[string]interface{}{"type": []string{"integer", "null"}},
		},
		"required":             []string{"nama_asm", "nama_toko", "nama_produk"},
		"additionalProperties": false,
	},
}
