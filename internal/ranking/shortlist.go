package ranking

import (
	"strings"

	"github.com/dusk-indust/procure/internal/payload"
)

// Sizes is the number of partners shortlisted per registry.
type Sizes struct {
	Suppliers     int `json:"suppliers"`
	Manufacturers int `json:"manufacturers"`
	Logistics     int `json:"logistics"`
}

// ShortlistSizes scales shortlist lengths with the number of components:
// suppliers 3-8, manufacturers 2-5, logistics providers 2-4.
func ShortlistSizes(nComponents int) Sizes {
	return Sizes{
		Suppliers:     clamp(nComponents, 3, 8),
		Manufacturers: clamp(nComponents/2, 2, 5),
		Logistics:     clamp(nComponents/3, 2, 4),
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// SupplierKeywords returns the lowercased name and category of each
// component, in component order.
func SupplierKeywords(components []payload.Component) []string {
	out := make([]string, 0, 2*len(components))
	for _, c := range components {
		out = append(out, strings.ToLower(c.Name), strings.ToLower(c.Category))
	}
	return out
}

// manufacturingTerms are promoted to manufacturer keywords when they appear
// in a component's name or category.
var manufacturingTerms = []string{
	"electronics", "mechanical", "automotive", "metal", "chemical",
	"textile", "precision", "machining", "injection", "welding",
}

// ManufacturerKeywords derives capability keywords for manufacturer
// matching. The list always starts with "assembly" and "production".
func ManufacturerKeywords(components []payload.Component) []string {
	out := []string{"assembly", "production"}
	for _, c := range components {
		name := strings.ToLower(c.Name)
		cat := strings.ToLower(c.Category)
		if cat != "" {
			out = append(out, cat)
		}
		for _, term := range manufacturingTerms {
			if strings.Contains(name, term) || strings.Contains(cat, term) {
				out = append(out, term)
			}
		}
	}
	return out
}
