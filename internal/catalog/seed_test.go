package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/catalog"
)

type execCall struct {
	sql  string
	args []any
}

type recordingExecer struct {
	calls []execCall
	fail  string
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if r.fail != "" && strings.Contains(sql, r.fail) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	r.calls = append(r.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func samplePayload(t *testing.T) catalog.Payload {
	t.Helper()
	var p catalog.Payload
	require.NoError(t, json.Unmarshal([]byte(sampleCatalog), &p))
	return p
}

func TestSeedUpsertsEveryRow(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, catalog.Seed(context.Background(), db, samplePayload(t)))
	require.Len(t, db.calls, 5)

	product := db.calls[0]
	require.Contains(t, product.sql, "INSERT INTO products")
	require.Equal(t, "p1", product.args[0])
	require.Equal(t, "10", product.args[2])
	require.Equal(t, []string{"X"}, product.args[6])

	coupon := db.calls[3]
	require.Contains(t, coupon.sql, "INSERT INTO coupons")
	threshold, ok := coupon.args[7].(*string)
	require.True(t, ok)
	require.Equal(t, "100", *threshold)

	shipping := db.calls[4]
	require.Equal(t, "FLAT", shipping.args[8])
	require.Equal(t, "2", shipping.args[9])
}

func TestSeedRejectsInvalidPayload(t *testing.T) {
	p := samplePayload(t)
	p.Products = append(p.Products, p.Products[0])
	db := &recordingExecer{}
	err := catalog.Seed(context.Background(), db, p)
	require.ErrorIs(t, err, catalog.ErrInvalidPayload)
	require.Empty(t, db.calls)
}

func TestSeedWrapsExecErrors(t *testing.T) {
	err := catalog.Seed(context.Background(), &recordingExecer{fail: "INSERT INTO coupons"}, samplePayload(t))
	require.ErrorContains(t, err, "seed coupon SAVE10")
}

func TestSchemaCoversSourceTables(t *testing.T) {
	for _, table := range []string{"products", "discounts", "coupons", "shipping_options"} {
		require.Contains(t, catalog.Schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
