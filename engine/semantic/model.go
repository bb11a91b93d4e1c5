package semantic

// SearchResult is one nearest-neighbour hit from the menu collection.
type SearchResult struct {
	ID           uint64  `json:"id"`
	Score        float32 `json:"score"`
	RecipeName   string  `json:"recipe_name"`
	CategoryName string  `json:"category_name,omitempty"`
	Price        float64 `json:"price"`
}

// VectorRecord is one menu item as stored in Qdrant.
type VectorRecord struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any // recipe_name, category_id, category_name, price, features
}
