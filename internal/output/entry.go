// Package output holds the reviewed stock entry format and the appenders
// that persist it. The pipeline never writes output itself; callers confirm
// entries after review and hand them here.
package output

import (
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// StockEntry is one caller-confirmed stock movement row.
type StockEntry struct {
	Date        time.Time `json:"date"`
	ASMName     string    `json:"nama_asm"`
	AreaCode    string    `json:"area_code"`
	StoreID     string    `json:"store_id"`
	StoreName   string    `json:"nama_toko"`
	ProductName string    `json:"nama_produk"`
	SKUCode     string    `json:"sku_code"`
	StockStart  *int      `json:"stock_awal"`
	StockEnd    *int      `json:"stock_akhir"`
	StockSold   *int      `json:"stock_terjual"`
	PhotoURL    string    `json:"photo_url"`
}

// Validate enforces the rules a confirmed entry must satisfy. Unlike the
// extraction stages, a confirmed entry must carry a sold count and its stock
// numbers must be internally consistent.
func (e StockEntry) Validate() error {
	if e.StockSold == nil {
		return fmt.Errorf("stock_terjual is required")
	}
	if *e.StockSold < 0 {
		return fmt.Errorf("stock_terjual must not be negative, got %d", *e.StockSold)
	}
	if e.StockStart != nil && e.StockEnd != nil {
		if *e.StockEnd > *e.StockStart {
			return fmt.Errorf("stock_akhir %d exceeds stock_awal %d", *e.StockEnd, *e.StockStart)
		}
		if expected := *e.StockStart - *e.StockEnd; *e.StockSold != expected {
			return fmt.Errorf("stock_terjual %d does not match stock_awal - stock_akhir = %d", *e.StockSold, expected)
		}
	}
	return nil
}

// PhotoObjectName builds the object store key for a receipt photo:
// {year}/{month}/{uuid}_{filename}. The filename keeps only its base so a
// caller-supplied path cannot escape the prefix.
func PhotoObjectName(now time.Time, filename string) string {
	return fmt.Sprintf("%d/%02d/%s_%s", now.Year(), int(now.Month()), uuid.NewString(), path.Base(filename))
}
