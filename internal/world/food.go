package world

// FoodID is the stable identity of a food item. IDs are ULIDs, so they sort
// in spawn order.
type FoodID string

// FoodItem is a collectible at a fixed position.
type FoodItem struct {
	ID       FoodID `json:"id"`
	Position Point  `json:"position"`
}

func cloneFood(items []FoodItem) []FoodItem {
	cloned := make([]FoodItem, len(items))
	copy(cloned, items)
	return cloned
}
