package output

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

const outputSheet = "Stock_Output"

var outputHeader = []interface{}{
	"Date", "ASM", "Area", "Store ID", "Store", "Product", "SKU",
	"Stock Awal", "Stock Akhir", "Stock Terjual", "Photo URL",
}

// XLSXAppender appends confirmed entries to a workbook, creating the file
// and the output sheet with a header row when missing.
type XLSXAppender struct {
	path string
}

func NewXLSXAppender(path string) *XLSXAppender {
	return &XLSXAppender{path: path}
}

// Append validates and writes entries as rows. The whole call is rejected on
// the first invalid entry so a workbook never receives a partial batch.
func (a *XLSXAppender) Append(entries []StockEntry) error {
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	f, isNew, err := a.open()
	if err != nil {
		return err
	}
	defer f.Close()

	nextRow, err := a.prepareSheet(f, isNew)
	if err != nil {
		return err
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, nextRow+i)
		if err != nil {
			return fmt.Errorf("row %d: %w", nextRow+i, err)
		}
		if err := f.SetSheetRow(outputSheet, cell, &[]interface{}{
			entry.Date.Format("2006-01-02"),
			entry.ASMName,
			entry.AreaCode,
			entry.StoreID,
			entry.StoreName,
			entry.ProductName,
			entry.SKUCode,
			cellValue(entry.StockStart),
			cellValue(entry.StockEnd),
			cellValue(entry.StockSold),
			entry.PhotoURL,
		}); err != nil {
			return fmt.Errorf("write row %d: %w", nextRow+i, err)
		}
	}

	return f.SaveAs(a.path)
}

func (a *XLSXAppender) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(a.path); os.IsNotExist(err) {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(a.path)
	if err != nil {
		return nil, false, fmt.Errorf("open workbook %s: %w", a.path, err)
	}
	return f, false, nil
}

// prepareSheet ensures the output sheet and header exist and returns the
// first free row.
func (a *XLSXAppender) prepareSheet(f *excelize.File, isNew bool) (int, error) {
	idx, err := f.GetSheetIndex(outputSheet)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		if _, err := f.NewSheet(outputSheet); err != nil {
			return 0, err
		}
		if isNew {
			// Drop the default sheet so the workbook only carries ours.
			f.DeleteSheet("Sheet1")
		}
		if err := f.SetSheetRow(outputSheet, "A1", &outputHeader); err != nil {
			return 0, err
		}
		return 2, nil
	}

	rows, err := f.GetRows(outputSheet)
	if err != nil {
		return 0, err
	}
	return len(rows) + 1, nil
}

func cellValue(p *int) interface{} {
	if p == nil {
		return ""
	}
	return *p
}
