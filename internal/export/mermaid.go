package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/procure/internal/orchestrator"
)

// Mermaid produces a Mermaid graph LR diagram of the supply chain in
// plan: suppliers feed the manufacturer, whose output travels through the
// logistics provider and retailer to the customer. Stages that did not
// complete normally are styled as degraded.
func Mermaid(plan orchestrator.ExecutionPlan) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	// Component count per supplier, from the quotes.
	parts := make(map[string]int)
	for _, q := range plan.Suppliers.Quotes {
		parts[q.AssignedSupplier.String()]++
	}
	suppliers := append([]string(nil), plan.Suppliers.Selected...)
	for name := range parts {
		if !contains(suppliers, name) {
			suppliers = append(suppliers, name)
		}
	}
	sort.Strings(suppliers)

	manufacturer := label(plan.Manufacturer.Selected, "Manufacturer")
	logistics := label(plan.Logistics.Selected, "Logistics")
	retailer := label(plan.Retailer.Selected, "Retailer")

	sb.WriteString("  subgraph S[\"Suppliers\"]\n")
	for i, name := range suppliers {
		fmt.Fprintf(&sb, "    S%d[\"%s\"]\n", i, escape(name))
	}
	sb.WriteString("  end\n")
	fmt.Fprintf(&sb, "  M[\"%s\"]\n", escape(manufacturer))
	fmt.Fprintf(&sb, "  L[\"%s\"]\n", escape(logistics))
	fmt.Fprintf(&sb, "  R[\"%s\"]\n", escape(retailer))
	sb.WriteString("  C((\"Customer\"))\n")

	for i, name := range suppliers {
		if n := parts[name]; n > 0 {
			fmt.Fprintf(&sb, "  S%d -->|%d parts| M\n", i, n)
		} else {
			fmt.Fprintf(&sb, "  S%d --> M\n", i)
		}
	}
	if d := plan.Timeline.AssemblyDays; d > 0 {
		fmt.Fprintf(&sb, "  M -->|%dd assembly| L\n", d)
	} else {
		sb.WriteString("  M --> L\n")
	}
	if mode := plan.Logistics.Route.Mode.String(); mode != "" {
		fmt.Fprintf(&sb, "  L -->|%s| R\n", escape(mode))
	} else {
		sb.WriteString("  L --> R\n")
	}
	if d := plan.Timeline.DeliveryDays; d > 0 {
		fmt.Fprintf(&sb, "  R -->|%dd delivery| C\n", d)
	} else {
		sb.WriteString("  R --> C\n")
	}

	var degraded []string
	if plan.Suppliers.Status != orchestrator.StatusOK && len(suppliers) > 0 {
		degraded = append(degraded, "S")
	}
	if plan.Manufacturer.Status != orchestrator.StatusOK {
		degraded = append(degraded, "M")
	}
	if plan.Logistics.Status != orchestrator.StatusOK {
		degraded = append(degraded, "L")
	}
	if plan.Retailer.Status != orchestrator.StatusOK {
		degraded = append(degraded, "R")
	}
	if len(degraded) > 0 {
		sb.WriteString("  classDef degraded stroke:#d9534f,stroke-dasharray:4\n")
		fmt.Fprintf(&sb, "  class %s degraded\n", strings.Join(degraded, ","))
	}
	return sb.String()
}

func label(s, fallback string) string {
	if strings.TrimSpace(s) == "" || s == "N/A" {
		return fallback
	}
	return s
}

// escape makes s safe inside a quoted Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
