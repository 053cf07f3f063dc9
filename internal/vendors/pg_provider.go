package vendors

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/procureline/engine/internal/models"
)

// PGProvider reads vendor offers from Postgres.
//
// Expected schema:
//
//	vendor_offers(vendor_id, vendor_name, product_id, category_id, location,
//	  price, currency, normalized_price, min_quantity, availability,
//	  lead_time_days, rating, is_preferred)
type PGProvider struct {
	db *sql.DB
}

func NewPGProvider(db *sql.DB) *PGProvider {
	return &PGProvider{db: db}
}

// Options returns the offers matching the query's product, category and
// location, restricted to offers whose minimum order quantity fits the
// request. Category and location match loosely: an empty value on either
// side matches everything. A non-positive query quantity disables the
// min-quantity filter. Ordering is stable (vendor_id) so assignment stays
// deterministic.
func (p *PGProvider) Options(ctx context.Context, q Query) ([]models.VendorOffer, error) {
	query := `
		SELECT vendor_id, vendor_name, price, currency, normalized_price,
		       min_quantity, availability, lead_time_days, rating, is_preferred
		FROM vendor_offers
		WHERE product_id = $1
		  AND (location = $2 OR location = '')
		  AND (category_id = $3 OR category_id = '' OR $3 = '')
		  AND ($4 <= 0 OR min_quantity <= $4)
		ORDER BY vendor_id ASC
	`
	rows, err := p.db.QueryContext(ctx, query, q.ProductID, q.Location, q.CategoryID, q.Quantity)
	if err != nil {
		return nil, fmt.Errorf("query vendor offers: %w", err)
	}
	defer rows.Close()

	var out []models.VendorOffer
	for rows.Next() {
		var v models.VendorOffer
		var availability string
		if err := rows.Scan(&v.VendorID, &v.VendorName, &v.Price, &v.Currency, &v.NormalizedPrice,
			&v.MinQuantity, &availability, &v.LeadTime, &v.Rating, &v.IsPreferred); err != nil {
			return nil, fmt.Errorf("scan vendor offer: %w", err)
		}
		v.Availability = models.Availability(availability)
		out = append(out, v)
	}
	return out, rows.Err()
}
