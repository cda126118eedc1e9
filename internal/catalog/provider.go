package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/order"
)

// PGPriceProvider answers price lookups from the products table. Order
// creation snapshots the returned price; later catalog edits never touch
// existing orders.
type PGPriceProvider struct {
	DB *sqlx.DB
}

func NewPGPriceProvider(db *sqlx.DB) *PGPriceProvider {
	return &PGPriceProvider{DB: db}
}

func (p *PGPriceProvider) GetPrice(ctx context.Context, productID string) (*order.PriceQuote, error) {
	var row struct {
		Price    int64 `db:"price"`
		IsActive bool  `db:"is_active"`
	}
	err := p.DB.GetContext(ctx, &row, `SELECT price, is_active FROM products WHERE id = $1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &order.PriceQuote{UnitPrice: row.Price, IsActive: row.IsActive}, nil
}

// PGFeeProvider looks the delivery fee up by zone, falling back to a flat
// default when the zone is empty or unknown.
type PGFeeProvider struct {
	DB         *sqlx.DB
	DefaultFee int64
}

func NewPGFeeProvider(db *sqlx.DB, defaultFee int64) *PGFeeProvider {
	return &PGFeeProvider{DB: db, DefaultFee: defaultFee}
}

func (p *PGFeeProvider) QuoteFee(ctx context.Context, zoneID string, cartSubtotal int64) (int64, error) {
	if zoneID == "" {
		return p.DefaultFee, nil
	}
	var fee int64
	err := p.DB.GetContext(ctx, &fee, `SELECT delivery_fee FROM delivery_zones WHERE id = $1`, zoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p.DefaultFee, nil
		}
		return 0, err
	}
	return fee, nil
}
