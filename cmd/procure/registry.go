package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/export"
	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/partner"
	"github.com/dusk-indust/procure/internal/ranking"
)

func partnersCmd(_ *app) *cobra.Command {
	var (
		asJSON   bool
		rank     bool
		q        ranking.Query
		lat, lon float64
	)
	cmd := &cobra.Command{
		Use:       "partners <suppliers|manufacturers|logistics>",
		Short:     "List or rank a partner registry",
		Example:   "  procure partners suppliers --rank --keyword battery --lat 52.52 --lon 13.405",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(partner.KindSuppliers), string(partner.KindManufacturers), string(partner.KindLogistics)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := partner.ParseKind(args[0])
			if err != nil {
				return err
			}
			reg := partner.Default()
			out := cmd.OutOrStdout()

			if rank {
				if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
					q.Reference = &geo.Point{Lat: lat, Lon: lon}
				}
				return export.WriteJSON(out, ranking.Select(reg, kind, q))
			}

			switch kind {
			case partner.KindSuppliers:
				if asJSON {
					return export.WriteJSON(out, reg.Suppliers())
				}
				return printPartners(out, reg.Suppliers(), func(s partner.Supplier) (partner.Identity, string) {
					return s.Identity, strings.Join(s.Specialization, ", ")
				})
			case partner.KindManufacturers:
				if asJSON {
					return export.WriteJSON(out, reg.Manufacturers())
				}
				return printPartners(out, reg.Manufacturers(), func(m partner.Manufacturer) (partner.Identity, string) {
					return m.Identity, m.Specialization
				})
			default:
				if asJSON {
					return export.WriteJSON(out, reg.Logistics())
				}
				return printPartners(out, reg.Logistics(), func(l partner.LogisticsProvider) (partner.Identity, string) {
					return l.Identity, strings.Join(l.Modes, ", ")
				})
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write records as JSON")
	cmd.Flags().BoolVar(&rank, "rank", false, "rank the registry and print the shortlist as JSON")
	cmd.Flags().StringSliceVar(&q.Keywords, "keyword", nil, "capability keyword (repeatable)")
	cmd.Flags().Float64Var(&lat, "lat", geo.Paris.Lat, "reference latitude")
	cmd.Flags().Float64Var(&lon, "lon", geo.Paris.Lon, "reference longitude")
	cmd.Flags().StringVar(&q.Mode, "mode", "", "logistics transport mode")
	cmd.Flags().IntVar(&q.TopN, "top", ranking.DefaultTopN, "shortlist length")
	return cmd
}

func printPartners[T any](w io.Writer, list []T, describe func(T) (partner.Identity, string)) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tFOCUS")
	for _, p := range list {
		id, focus := describe(p)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id.ID, id.Name, id.Place(), focus)
	}
	return tw.Flush()
}

func agentsCmd(_ *app) *cobra.Command {
	var (
		asJSON bool
		q      agent.Query
	)
	cmd := &cobra.Command{
		Use:   "agents [id]",
		Short: "List, search, or show registered agents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := agent.Default()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				f, ok := reg.Get(args[0])
				if !ok {
					return fmt.Errorf("agent %q not found", args[0])
				}
				return export.WriteJSON(out, f)
			}

			found := reg.Search(q)
			if asJSON {
				return export.WriteJSON(out, found)
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "No agents match.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROLE\tJURISDICTION\tENDPOINT\tCAPABILITIES")
			for _, f := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Role, f.Jurisdiction, f.Endpoint, strings.Join(f.Capabilities, ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write agents as JSON")
	cmd.Flags().StringVar(&q.Role, "role", "", "filter by role")
	cmd.Flags().StringSliceVar(&q.Capability, "capability", nil, "filter by capability (any of)")
	cmd.Flags().StringVar(&q.Jurisdiction, "jurisdiction", "", "filter by jurisdiction")
	return cmd
}
