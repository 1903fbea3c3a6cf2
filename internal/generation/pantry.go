// Package generation implements the asynchronous recipe generation job: it
// assembles pantry context, calls the recipe gateway, persists the result,
// and flips the user's trigger to serve it.
package generation

import (
	"time"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// expiryHorizonDays marks an item as priority when it has fewer than this
// many days of shelf life left.
const expiryHorizonDays = 2

// SplitPantry converts inventory rows to generation wire items and splits
// them by expiry urgency. Items within the horizon (or already past it) go to
// the priority list so the model consumes them first.
func SplitPantry(items []types.PantryItem, now time.Time) (priority, other []types.GenerationItem) {
	for i := range items {
		item := &items[i]
		gen := types.GenerationItem{
			ID:        item.ID,
			Name:      item.Name,
			Brand:     item.Brand,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			DaysOwned: item.DaysOwned(now),
		}
		if item.ShelfLifeDays-gen.DaysOwned < expiryHorizonDays {
			priority = append(priority, gen)
		} else {
			other = append(other, gen)
		}
	}
	return priority, other
}
