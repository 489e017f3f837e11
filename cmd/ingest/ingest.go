package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avezzali/estratto/internal/domain/harmonize"
	"github.com/avezzali/estratto/internal/domain/ingest/parser"
	"github.com/avezzali/estratto/internal/domain/ingest/service"
	"github.com/avezzali/estratto/internal/domain/rawrecord"
	"github.com/avezzali/estratto/pkg/config"
	"github.com/avezzali/estratto/pkg/db"
)

func newIngestCommand() *cobra.Command {
	var (
		file      string
		bank      string
		account   string
		yes       bool
		noArchive bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one statement file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), file, bank, account, yes, noArchive)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "statement file to ingest (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&bank, "bank", "", "bank identifier; omit to auto-detect")
	cmd.Flags().StringVar(&account, "account", "main", "account the statement belongs to")
	cmd.Flags().BoolVar(&yes, "yes", false, "commit without asking for confirmation")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "skip archiving the processed file")

	return cmd
}

func newBanksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List supported banks",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry(newLogger())
			if err != nil {
				return err
			}
			for _, id := range registry.Banks() {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newRegistry(logger *slog.Logger) (*parser.Registry, error) {
	return parser.NewRegistry(
		parser.NewIntesa(logger),
		parser.NewAllianz(logger),
		parser.NewFineco(logger),
	)
}

func runIngest(ctx context.Context, file, bank, account string, yes, noArchive bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()

	registry, err := newRegistry(logger)
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	ingester := service.New(registry, cfg.Ingest.DataDir, logger)
	batch, err := ingester.ParseFile(file, bank, account)
	if err != nil {
		return err
	}

	printWarnings(batch.Warnings)

	var confirm harmonize.ConfirmFunc
	if cfg.Ingest.RequireConfirmation && !yes {
		confirm = promptConfirm
	}

	harmonizer := harmonize.New(harmonize.NewRepository(pool), confirm, logger)
	outcome, err := harmonizer.Harmonize(ctx, batch.Transactions)
	if err != nil {
		return err
	}

	if !outcome.Confirmed {
		fmt.Println("Aborted, nothing was stored.")
		return nil
	}

	if outcome.Inserted > 0 {
		linker := rawrecord.NewLinker(rawrecord.NewRepository(pool), logger)
		linker.Link(ctx, batch.Bank, batch.Raw, batch.RawIndex, outcome)
	}

	if !noArchive {
		if _, err := ingester.Archive(batch); err != nil {
			return err
		}
	}

	fmt.Printf("Done: %d inserted, %d already stored.\n", outcome.Inserted, outcome.Skipped)
	if outcome.LastObservedDate != nil {
		fmt.Printf("Last stored date for %s/%s was %s.\n",
			batch.Bank, batch.Account, outcome.LastObservedDate.Format("2006-01-02"))
	}
	return nil
}

func printWarnings(warnings []service.Warning) {
	for _, w := range warnings {
		fmt.Printf("warning [%s]: %s %v\n", w.Kind, w.Message, w.Details)
	}
}

// promptConfirm lists the duplicates found and reads a y/n answer for
// committing the rest.
func promptConfirm(duplicates []parser.Transaction, newCount int) bool {
	fmt.Printf("\n%d records already stored:\n", len(duplicates))
	for _, tx := range duplicates {
		fmt.Printf("  %s  %10s  %s\n",
			tx.Date.Format("2006-01-02"), tx.Amount.StringFixed(2), parser.Deref(tx.Description))
	}
	fmt.Printf("Store the remaining %d new records? [y/N] ", newCount)

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
