package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/etnz/twackup/bridge"
	"github.com/spf13/cobra"
)

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := bridge.ParseSortMode(a.v.GetString("sort"))
			if err != nil {
				return err
			}
			h, err := bridge.Open(a.v.GetString("admin-dir"), a.logger)
			if err != nil {
				return err
			}
			defer h.Close()

			pkgs, ok := h.Packages(a.v.GetBool("leaves"), mode)
			if !ok {
				return fmt.Errorf("listing packages failed")
			}
			a.logger.Debug("listed packages", "count", len(pkgs), "sort", mode)

			if a.v.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(pkgs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION\tARCH\tCATEGORY")
			for _, p := range pkgs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Version, p.Architecture, p.Category)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.Bool("leaves", false, "only list packages no other package depends on")
	f.String("sort", bridge.Name.String(), "order: unsorted, identifier or name")
	f.Bool("json", false, "print descriptors as JSON")
	return cmd
}
