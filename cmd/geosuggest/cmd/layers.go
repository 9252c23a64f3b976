package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/geosuggest"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Show how configured layers resolve against the loaded sources",
	Args:  cobra.NoArgs,
	RunE:  runLayers,
}

func runLayers(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger("cli", cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cmd.Context(), cfg, logger, flagData)
	if err != nil {
		return err
	}
	defer a.close()

	return printOutcomes(cmd.OutOrStdout(), a.engine.Layers())
}

func printOutcomes(w io.Writer, outcomes []geosuggest.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tENABLED\tRESOLVED\tSTRATEGY\tPATH\tFIELDS")
	for _, o := range outcomes {
		resolved, strategy, path := "not found", "-", "-"
		if o.Err == nil {
			resolved = o.Resolution.Source.Name()
			strategy = string(o.Resolution.Strategy)
			if len(o.Resolution.Path) > 0 {
				path = strings.Join(o.Resolution.Path, "/")
			}
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%s\n",
			o.Config.LogicalName(), o.Config.Enabled(), resolved, strategy, path,
			strings.Join(o.Config.SearchFields(), ","))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
