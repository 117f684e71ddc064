// internal/catalog/postgres_source_test.go
package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-intake/internal/common/database"
)

func TestPostgresSource_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT area_code, area_name, region").
		WillReturnRows(sqlmock.NewRows([]string{"area_code", "area_name", "region"}).
			AddRow("JKT1", "Jakarta Pusat", "Jawa").
			AddRow("BDG1", "Bandung", "Jawa"))

	mock.ExpectQuery("SELECT name, area_code, area_name").
		WillReturnRows(sqlmock.NewRows([]string{"name", "area_code", "area_name"}).
			AddRow("Budi Santoso", "JKT1", "Jakarta Pusat"))

	mock.ExpectQuery("SELECT store_id, store_name, area_code, city").
		WillReturnRows(sqlmock.NewRows([]string{"store_id", "store_name", "area_code", "city"}).
			AddRow("S001", "Toko Maju Jaya", "JKT1", "Jakarta").
			AddRow("S002", "Toko Berkah", "BDG1", "Bandung"))

	mock.ExpectQuery("SELECT product_name, sku_code, category").
		WillReturnRows(sqlmock.NewRows([]string{"product_name", "sku_code", "category"}).
			AddRow("Paracetamol 500mg", "SKU-001", "Pharma"))

	src := NewPostgresSource(&database.PostgresClient{DB: db})
	ref, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, ref.Areas, 2)
	assert.Len(t, ref.ASMs, 1)
	assert.Len(t, ref.Stores, 2)
	assert.Len(t, ref.Products, 1)
	assert.Equal(t, "Toko Berkah", ref.Stores[1].StoreName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT area_code, area_name, region").
		WillReturnError(errors.New("connection refused"))

	src := NewPostgresSource(&database.PostgresClient{DB: db})
	_, err = src.Load(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "load areas")
}
