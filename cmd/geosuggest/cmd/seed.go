package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/repository/hosted"
	"github.com/kailas-cloud/geosuggest/internal/repository/packaged"
)

var flagPackage string

var seedCmd = &cobra.Command{
	Use:   "seed <file.json>",
	Short: "Load a JSON dataset into the hosted store or a SQLite package",
	Long: "Writes every service and layer of the dataset to the configured hosted store, " +
		"replacing existing layers of the same name. With --package the dataset is imported " +
		"into a SQLite layer package instead.",
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&flagPackage, "package", "", "SQLite package file to import into")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if flagPackage != "" {
		pkg, err := packaged.Open(flagPackage, nil)
		if err != nil {
			return fmt.Errorf("open package: %w", err)
		}
		defer func() { _ = pkg.Close() }()

		n, err := pkg.Import(ctx, ds)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		_, err = fmt.Fprintf(out, "imported %d features into %s\n", n, flagPackage)
		return err //nolint:wrapcheck // terminal write
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return errors.New("seed: database.addrs is not configured (use --package for SQLite)")
	}
	logger, err := newLogger("cli", cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := hosted.New(store, 0, logger).Seed(ctx, ds)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("Seeded hosted store", zap.Int("features", n), zap.Int("services", len(ds.Services)))
	_, err = fmt.Fprintf(out, "seeded %d features across %d services\n", n, len(ds.Services))
	return err //nolint:wrapcheck // terminal write
}
