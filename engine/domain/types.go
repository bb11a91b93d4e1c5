// Package domain defines the menu catalog types, the fixed lookup tables, and
// the error taxonomy shared by the recommendation engine. It also acts as the
// validation gate for inbound recommendation requests.
package domain

// PlaceholderImage replaces a missing img_src before an item leaves the engine.
const PlaceholderImage = "https://placehold.co/300x200"

// MenuItem is one catalog row. Items are immutable once the catalog is built.
type MenuItem struct {
	ID                 int     `json:"id"`
	RecipeName         string  `json:"recipe_name"`
	Ingredients        string  `json:"ingredients"`
	CleanedIngredients string  `json:"cleaned_ingredients,omitempty"`
	CuisinePath        string  `json:"cuisine_path,omitempty"`
	CategoryID         int     `json:"category_id"`
	Price              float64 `json:"price"`

	// CategoryName is derived from CategoryID at load time; nil when the id is
	// outside the taxonomy.
	CategoryName *string `json:"category_name"`

	// ImgSrc is nil when the source had no value (or no img_src column).
	ImgSrc *string `json:"img_src"`

	// Features is recipe_name, cuisine_path, cleaned_ingredients and
	// ingredients joined by spaces. It is not used for vectorization.
	Features string `json:"-"`
}

// HasCategory reports whether the item's derived category equals name.
func (m MenuItem) HasCategory(name string) bool {
	return m.CategoryName != nil && *m.CategoryName == name
}

// Image returns the display URL, falling back to PlaceholderImage.
func (m MenuItem) Image() string {
	if m.ImgSrc == nil || *m.ImgSrc == "" {
		return PlaceholderImage
	}
	return *m.ImgSrc
}

// SimilarItem is the projection returned for content-based recommendations.
type SimilarItem struct {
	RecipeName  string  `json:"recipe_name"`
	Ingredients string  `json:"ingredients"`
	CategoryID  int     `json:"category_id"`
	Price       float64 `json:"price"`
}

// WeatherItem is the projection returned for weather-based recommendations.
// ImgSrc always carries a URL.
type WeatherItem struct {
	RecipeName   string  `json:"recipe_name"`
	Ingredients  string  `json:"ingredients"`
	CategoryID   int     `json:"category_id"`
	CategoryName *string `json:"category_name"`
	Price        float64 `json:"price"`
	ImgSrc       string  `json:"img_src"`
}

// AsSimilar projects the item onto the similar-item fields.
func (m MenuItem) AsSimilar() SimilarItem {
	return SimilarItem{
		RecipeName:  m.RecipeName,
		Ingredients: m.Ingredients,
		CategoryID:  m.CategoryID,
		Price:       m.Price,
	}
}

// AsWeather projects the item onto the weather-item fields, substituting the
// placeholder image.
func (m MenuItem) AsWeather() WeatherItem {
	return WeatherItem{
		RecipeName:   m.RecipeName,
		Ingredients:  m.Ingredients,
		CategoryID:   m.CategoryID,
		CategoryName: m.CategoryName,
		Price:        m.Price,
		ImgSrc:       m.Image(),
	}
}

// Recommendation is the combined result served to the web layer.
type Recommendation struct {
	ClickedItem []SimilarItem `json:"clicked_item_recommendation"`
	WeatherItem []WeatherItem `json:"weather_based_recommendation"`
	Weather     string        `json:"weather"`
	Temperature float64       `json:"temperature"`
}
