package ranking

import (
	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/partner"
)

// DefaultTopN is the shortlist length of an ad-hoc Query.
const DefaultTopN = 5

// Query is an ad-hoc shortlist request against one registry. Suppliers and
// manufacturers use Keywords and Reference; logistics providers use Pickup
// (Reference when unset) and Mode.
type Query struct {
	Keywords  []string   `json:"keywords,omitempty"`
	Reference *geo.Point `json:"reference,omitempty"`
	Pickup    *geo.Point `json:"pickup,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	TopN      int        `json:"top_n,omitempty"`
}

// Select runs q against the kind registry and returns summaries:
// []SupplierSummary, []ManufacturerSummary, or []LogisticsSummary.
func Select(reg *partner.Registry, kind partner.Kind, q Query) any {
	n := q.TopN
	if n <= 0 {
		n = DefaultTopN
	}
	switch kind {
	case partner.KindSuppliers:
		return Summarize(SelectSuppliers(reg, q.Keywords, q.Reference, n), SummarizeSupplier)
	case partner.KindManufacturers:
		return Summarize(SelectManufacturers(reg, q.Keywords, q.Reference, n), SummarizeManufacturer)
	}
	pickup := geo.Paris
	switch {
	case q.Pickup != nil:
		pickup = *q.Pickup
	case q.Reference != nil:
		pickup = *q.Reference
	}
	return Summarize(SelectLogistics(reg, pickup, q.Mode, n), SummarizeLogistics)
}
