// Package catalog assigns a default category to manually entered items so
// they sort sensibly in store order when the user skips the category field.
package catalog

import "strings"

// DefaultCategoryID is used when no keyword matches.
const DefaultCategoryID = "other"

// Categorize returns the category id for an item name. Matching is
// case-insensitive: exact match first, then substring match.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return DefaultCategoryID
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return DefaultCategoryID
}

var exactMatch = map[string]string{
	// Produce
	"apple": "produce", "apples": "produce",
	"banana": "produce", "bananas": "produce",
	"orange": "produce", "oranges": "produce",
	"lemon": "produce", "lemons": "produce",
	"avocado": "produce", "avocados": "produce",
	"tomato": "produce", "tomatoes": "produce",
	"potato": "produce", "potatoes": "produce",
	"onion": "produce", "onions": "produce",
	"garlic":  "produce",
	"lettuce": "produce",
	"spinach": "produce",
	"carrots": "produce",
	"grapes":  "produce",

	// Dairy
	"milk": "dairy", "butter": "dairy",
	"cheese": "dairy", "yogurt": "dairy",
	"eggs": "dairy", "cream": "dairy",

	// Meat & seafood
	"chicken": "meat", "beef": "meat",
	"pork": "meat", "salmon": "meat",
	"bacon": "meat", "sausage": "meat",

	// Bakery
	"bread": "bakery", "bagels": "bakery",
	"tortillas": "bakery", "baguette": "bakery",

	// Pantry
	"rice": "pantry", "pasta": "pantry",
	"flour": "pantry", "sugar": "pantry",
	"salt": "pantry", "cereal": "pantry",
	"oil": "pantry", "beans": "pantry",

	// Beverages
	"coffee": "beverages", "tea": "beverages",
	"juice": "beverages", "soda": "beverages",
	"water": "beverages", "beer": "beverages",
	"wine": "beverages",

	// Household
	"detergent": "household", "sponges": "household",
	"batteries": "household",

	// Personal care
	"shampoo": "personal_care", "toothpaste": "personal_care",
	"soap": "personal_care", "deodorant": "personal_care",
}

// Ordered longer/more-specific keywords first so "ice cream" wins over "ice".
var substringMatches = []struct {
	keyword  string
	category string
}{
	{"ice cream", "frozen"},
	{"frozen", "frozen"},
	{"toilet paper", "household"},
	{"paper towel", "household"},
	{"trash bag", "household"},
	{"dish soap", "household"},
	{"yogurt", "dairy"},
	{"cheese", "dairy"},
	{"milk", "dairy"},
	{"chicken", "meat"},
	{"steak", "meat"},
	{"fish", "meat"},
	{"shrimp", "meat"},
	{"bread", "bakery"},
	{"cookie", "snacks"},
	{"chips", "snacks"},
	{"chocolate", "snacks"},
	{"candy", "snacks"},
	{"sauce", "pantry"},
	{"soup", "pantry"},
	{"spice", "pantry"},
	{"juice", "beverages"},
	{"berries", "produce"},
	{"salad", "produce"},
	{"fruit", "produce"},
}
