package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/esgportal/apiserver/internal/db"
	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/internal/storage"
	"github.com/esgportal/apiserver/internal/store"
)

var (
	catalogFile  string
	catalogForce bool
	reportISIN   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the company catalog",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import companies from a CSV or XLSX sheet",
	Long: `Imports companies keyed by ISIN. New companies are created; existing
ones are only updated with --force. Usage:

	esgportal catalog sync --file companies.xlsx [--force]
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, ctx := setup(cmd.Context())

		data, err := os.ReadFile(catalogFile)
		if err != nil {
			return fmt.Errorf("read sheet: %w", err)
		}
		rows, err := services.ParseSheet(catalogFile, data)
		if err != nil {
			return fmt.Errorf("parse sheet: %w", err)
		}

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		catalog := services.NewCatalogService(store.NewCompanyRepository(conn), store.NewFundRepository(conn), nil)
		report, err := catalog.Sync(ctx, rows, catalogForce)
		if err != nil {
			return err
		}
		for _, msg := range report.Errors {
			log.Warn().Msg(msg)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "companies created=%d updated=%d funds created=%d updated=%d skipped=%d\n",
			report.Created, report.Updated, report.FundsCreated, report.FundsUpdated, report.Skipped)
		return nil
	},
}

var catalogUploadCmd = &cobra.Command{
	Use:   "upload-report",
	Short: "Store a PDF as a company's report",
	Long: `Stores a PDF in the configured object storage and flags the company
as having a report. Usage:

	esgportal catalog upload-report --isin INE000A01001 --file acme.pdf
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, ctx := setup(cmd.Context())
		if reportISIN == "" {
			return errors.New("--isin is required")
		}

		data, err := os.ReadFile(catalogFile)
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}

		catalog := services.NewCatalogService(store.NewCompanyRepository(conn), store.NewFundRepository(conn), objects)
		company, err := catalog.UploadReport(ctx, reportISIN, data)
		if err != nil {
			return err
		}
		log.Info().
			Str("isin", company.ISIN).
			Str("key", company.PDFFilename).
			Str("source", filepath.Base(catalogFile)).
			Msg("report uploaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogSyncCmd, catalogUploadCmd)

	catalogSyncCmd.Flags().StringVarP(&catalogFile, "file", "f", "", "CSV or XLSX sheet to import")
	catalogSyncCmd.Flags().BoolVar(&catalogForce, "force", false, "update companies that already exist")
	_ = catalogSyncCmd.MarkFlagRequired("file")

	catalogUploadCmd.Flags().StringVarP(&catalogFile, "file", "f", "", "PDF report to upload")
	catalogUploadCmd.Flags().StringVar(&reportISIN, "isin", "", "ISIN of the company")
	_ = catalogUploadCmd.MarkFlagRequired("file")
}
