package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/geosuggest"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
)

var (
	flagMode   string
	flagJSON   bool
	flagSelect bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <text>",
	Short: "Warm the replica and print suggestions for text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSuggest,
}

func init() {
	suggestCmd.Flags().StringVarP(&flagMode, "mode", "m", string(mode.Asset), "search mode: asset or location")
	suggestCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of text")
	suggestCmd.Flags().BoolVar(&flagSelect, "select", false, "resolve the top suggestion and print its selection")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	m, ok := mode.Parse(flagMode)
	if !ok {
		return fmt.Errorf("unknown mode %q, want asset or location", flagMode)
	}
	text := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger("cli", cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, flagData)
	if err != nil {
		return err
	}
	defer a.close()

	if m == mode.Asset {
		snap := a.engine.Warm(ctx)
		if snap.Failed > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d of %d layers failed to warm\n", snap.Failed, snap.Failed+snap.Succeeded)
		}
	}

	sugs, err := a.engine.Suggest(ctx, m, text)
	if err != nil {
		return fmt.Errorf("suggest: %w", err)
	}

	out := cmd.OutOrStdout()
	if !flagSelect {
		return printSuggestions(out, sugs, flagJSON)
	}
	if len(sugs) == 0 {
		return fmt.Errorf("no suggestions for %q: %w", text, geosuggest.ErrNotFound)
	}
	sel, err := a.engine.Select(ctx, sugs[0])
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return printSelection(out, sel, flagJSON)
}

func printSuggestions(w io.Writer, sugs []geosuggest.Suggestion, asJSON bool) error {
	if asJSON {
		if sugs == nil {
			sugs = []geosuggest.Suggestion{}
		}
		return writeJSON(w, sugs)
	}
	if len(sugs) == 0 {
		_, err := fmt.Fprintln(w, "no suggestions")
		return err //nolint:wrapcheck // terminal write
	}
	for i, s := range sugs {
		if _, err := fmt.Fprintf(w, "%2d. %s\n", i+1, s.Formatted); err != nil {
			return err //nolint:wrapcheck // terminal write
		}
	}
	return nil
}

func printSelection(w io.Writer, sel geosuggest.Selection, asJSON bool) error {
	if asJSON {
		return writeJSON(w, sel)
	}
	extent := "no geometry"
	if sel.Geometry != nil {
		extent = sel.Geometry.Extent().String()
	}
	label := sel.DisplayText
	if sel.Layer != "" {
		label = fmt.Sprintf("%s %s=%s (feature %s)", sel.Layer, sel.Field, sel.DisplayText, sel.FeatureID)
	}
	_, err := fmt.Fprintf(w, "%s\n  extent: %s\n  source: %s\n", label, extent, sel.Source)
	return err //nolint:wrapcheck // terminal write
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
