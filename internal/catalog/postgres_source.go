package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the slice of the postgres client the source needs.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// PostgresSource loads reference data from the four reference tables.
type PostgresSource struct {
	db Querier
}

func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Load(ctx context.Context) (*Reference, error) {
	ref := &Reference{}

	rows, err := s.db.Query(ctx, `
		SELECT area_code, area_name, region
		FROM areas
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load areas: %w", err)
	}
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.AreaCode, &a.AreaName, &a.Region); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan area: %w", err)
		}
		ref.Areas = append(ref.Areas, a)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT name, area_code, area_name
		FROM area_sales_managers
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load asms: %w", err)
	}
	for rows.Next() {
		var m ASM
		if err := rows.Scan(&m.Name, &m.AreaCode, &m.AreaName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan asm: %w", err)
		}
		ref.ASMs = append(ref.ASMs, m)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT store_id, store_name, area_code, city
		FROM stores
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}
	for rows.Next() {
		var st Store
		if err := rows.Scan(&st.StoreID, &st.StoreName, &st.AreaCode, &st.City); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan store: %w", err)
		}
		ref.Stores = append(ref.Stores, st)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT product_name, sku_code, category
		FROM products
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ProductName, &p.SKUCode, &p.Category); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product: %w", err)
		}
		ref.Products = append(ref.Products, p)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return ref, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
