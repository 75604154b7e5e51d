package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/chazu/indy/vm"
	"github.com/chazu/indy/vm/dispatch"
	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

func (c *CLI) newRunCmd() *cobra.Command {
	var (
		scenarioNames []string
		cborPath      string
		showSites     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run workload scenarios and print inline cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			selected, err := selectScenarios(scenarioNames)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rt := vm.NewRuntime()
			l := dispatch.NewLinker(rt, cfg.Options())
			for _, sc := range selected {
				summary, err := sc.run(cmd.Context(), l)
				if err != nil {
					return zerr.With(zerr.Wrap(err, "scenario failed"), "scenario", sc.name)
				}
				_, _ = fmt.Fprintf(out, "%-12s %s\n", sc.name, summary)
			}

			report := l.Report()
			printStats(out, report.Stats)
			if showSites {
				printSites(out, report.Sites)
			}
			if cborPath != "" {
				data, err := dispatch.MarshalReport(report)
				if err != nil {
					return zerr.Wrap(err, "encode report")
				}
				if err := os.WriteFile(cborPath, data, 0644); err != nil {
					return zerr.With(zerr.Wrap(err, "write report"), "path", cborPath)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&scenarioNames, "scenario", "s", nil,
		"Scenarios to run (default: all): "+strings.Join(scenarioNamesList(), ", "))
	cmd.Flags().StringVar(&cborPath, "cbor", "", "Also write the statistics report as CBOR to this file")
	cmd.Flags().BoolVar(&showSites, "sites", false, "Print per-site state")
	return cmd
}

func printStats(w io.Writer, s dispatch.ICStats) {
	_, _ = fmt.Fprintf(w, "\nsites %d: %d monomorphic, %d polymorphic, %d megamorphic, %d empty\n",
		s.TotalCallSites, s.Monomorphic, s.Polymorphic, s.Megamorphic, s.Empty)
	_, _ = fmt.Fprintf(w, "hits %d, misses %d, clears %d, hit rate %.1f%%, monomorphic rate %.1f%%\n",
		s.TotalHits, s.TotalMisses, s.TotalClears, s.HitRate, s.MonomorphicRate)
}

func printSites(w io.Writer, sites []dispatch.SiteReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\nID\tKIND\tNAME\tSTATE\tHITS\tMISSES\tCLEARS\tMAX SHAPES")
	for _, s := range sites {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			s.ID, s.Kind, s.Name, s.State, s.Hits, s.Misses, s.Clears, s.MaxShapes)
	}
	_ = tw.Flush()
}
