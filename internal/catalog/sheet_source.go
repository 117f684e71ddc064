package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet tab names and layouts mirror the upstream reference workbook:
// ASM_Area (Name, AreaCode, AreaName), Areas (AreaCode, AreaName, Region),
// Stores (StoreID, StoreName, AreaCode, Kota), Products (ProductName, SKUCode,
// Category). Row 1 is the header on every tab.
const (
	sheetASMs     = "ASM_Area"
	sheetAreas    = "Areas"
	sheetStores   = "Stores"
	sheetProducts = "Products"
)

// SheetSource loads reference data from an xlsx workbook.
type SheetSource struct {
	path string
}

func NewSheetSource(path string) *SheetSource {
	return &SheetSource{path: path}
}

func (s *SheetSource) Load(ctx context.Context) (*Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open reference workbook %s: %w", s.path, err)
	}
	defer f.Close()

	ref := &Reference{}

	if err := forEachRow(f, sheetAreas, 3, func(cols []string) {
		ref.Areas = append(ref.Areas, Area{
			AreaCode: cols[0],
			AreaName: cols[1],
			Region:   cols[2],
		})
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(f, sheetASMs, 3, func(cols []string) {
		ref.ASMs = append(ref.ASMs, ASM{
			Name:     cols[0],
			AreaCode: cols[1],
			AreaName: cols[2],
		})
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(f, sheetStores, 4, func(cols []string) {
		ref.Stores = append(ref.Stores, Store{
			StoreID:   cols[0],
			StoreName: cols[1],
			AreaCode:  cols[2],
			City:      cols[3],
		})
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(f, sheetProducts, 3, func(cols []string) {
		ref.Products = append(ref.Products, Product{
			ProductName: cols[0],
			SKUCode:     cols[1],
			Category:    cols[2],
		})
	}); err != nil {
		return nil, err
	}

	return ref, nil
}

// forEachRow invokes fn for every non-blank data row, padding short rows so
// fn always sees width columns. Trailing tab garbage and surrounding
// whitespace are trimmed.
func forEachRow(f *excelize.File, sheet string, width int, fn func(cols []string)) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		cols := make([]string, width)
		blank := true
		for j := 0; j < width && j < len(row); j++ {
			cols[j] = strings.TrimSpace(row[j])
			if cols[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		fn(cols)
	}
	return nil
}
