package catalog

import "strings"

// AllCategories selects every category.
const AllCategories = "All"

// Filter returns the products whose title contains search and whose category
// matches category, both case-insensitively. An empty search matches every
// title; an empty or "All" category matches every product. The input is not
// modified and relative order is kept.
func Filter(products []Product, search, category string) []Product {
	term := strings.ToLower(search)
	anyCategory := category == "" || strings.EqualFold(category, AllCategories)

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !strings.Contains(strings.ToLower(p.Title), term) {
			continue
		}
		if !anyCategory && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories lists AllCategories followed by each distinct non-empty
// category in first-seen order.
func Categories(products []Product) []string {
	out := []string{AllCategories}
	seen := map[string]struct{}{}
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		k := strings.ToLower(p.Category)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
