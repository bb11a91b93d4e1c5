package domain

// Category names in the fixed taxonomy.
const (
	CategoryBreakfast     = "Breakfast"
	CategoryLunchSpecials = "Lunch Specials"
	CategoryDinnerDishes  = "Dinner Dishes"
	CategoryDesserts      = "Desserts"
	CategoryHotDrinks     = "Hot Drinks"
	CategoryColdDrinks    = "Cold Drinks"
	CategorySaladsSides   = "Salads and Sides"
	CategoryKidsMenu      = "Kid's Menu"
)

var categoryNames = map[int]string{
	1: CategoryBreakfast,
	2: CategoryLunchSpecials,
	3: CategoryDinnerDishes,
	4: CategoryDesserts,
	5: CategoryHotDrinks,
	6: CategoryColdDrinks,
	7: CategorySaladsSides,
	8: CategoryKidsMenu,
}

// CategoryName maps a category id onto the taxonomy.
func CategoryName(id int) (string, bool) {
	name, ok := categoryNames[id]
	return name, ok
}

// Weather condition labels understood by the preference table.
const (
	ConditionClear        = "Clear"
	ConditionHot          = "Hot"
	ConditionRain         = "Rain"
	ConditionDrizzle      = "Drizzle"
	ConditionClouds       = "Clouds"
	ConditionThunderstorm = "Thunderstorm"
	ConditionMist         = "Mist"
	ConditionHaze         = "Haze"
	ConditionFog          = "Fog"
	ConditionSmoke        = "Smoke"
	ConditionDust         = "Dust"
)

var weatherPreferences = map[string][]string{
	ConditionClear:        {CategoryColdDrinks, CategorySaladsSides, CategoryBreakfast, CategoryDesserts},
	ConditionHot:          {CategoryColdDrinks, CategoryDesserts, CategorySaladsSides},
	ConditionRain:         {CategoryHotDrinks, CategoryDinnerDishes},
	ConditionDrizzle:      {CategoryHotDrinks, CategoryLunchSpecials},
	ConditionClouds:       {CategoryHotDrinks, CategoryLunchSpecials, CategoryDinnerDishes},
	ConditionThunderstorm: {CategoryHotDrinks, CategoryDinnerDishes},
	ConditionMist:         {CategoryHotDrinks, CategoryBreakfast},
	ConditionHaze:         {CategoryColdDrinks, CategorySaladsSides, CategoryLunchSpecials},
	ConditionFog:          {CategoryHotDrinks, CategoryBreakfast},
	ConditionSmoke:        {CategoryHotDrinks, CategoryLunchSpecials},
	ConditionDust:         {CategoryColdDrinks, CategorySaladsSides},
}

// PreferredCategories returns the ranked categories for a condition label.
// Unknown labels yield an empty, non-nil slice. The result is a copy.
func PreferredCategories(condition string) []string {
	prefs := weatherPreferences[condition]
	out := make([]string, len(prefs))
	copy(out, prefs)
	return out
}
