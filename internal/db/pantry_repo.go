package db

import (
	"context"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// PantryRepository provides read access to the pantry_items table. The
// generation worker reads a user's inventory as context for recipe requests;
// inventory writes happen outside this service.
type PantryRepository struct {
	db DBTX
}

// NewPantryRepository creates a new PantryRepository backed by the given
// database connection (pool or transaction).
func NewPantryRepository(db DBTX) *PantryRepository {
	return &PantryRepository{db: db}
}

// ListForUser returns all pantry items for a user. An empty pantry returns an
// empty slice; generation still runs and falls back to staple-based recipes.
func (r *PantryRepository) ListForUser(ctx context.Context, userID int64) ([]types.PantryItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, name, brand, quantity, unit, shelf_life_days, purchased_at
		 FROM pantry_items
		 WHERE user_id = $1
		 ORDER BY purchased_at`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query pantry items", err)
	}
	defer rows.Close()

	items := make([]types.PantryItem, 0)
	for rows.Next() {
		var item types.PantryItem
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Name,
			&item.Brand,
			&item.Quantity,
			&item.Unit,
			&item.ShelfLifeDays,
			&item.PurchasedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pantry item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating pantry items", err)
	}

	return items, nil
}
