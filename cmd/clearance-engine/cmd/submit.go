package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/engine"
	"github.com/rezonia/clearance-engine/internal/model"
)

var (
	submitMode    string
	submitTimeout time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit an invoice to the authority",
	Long: `Validate, sign and submit an invoice to the authority.

Clearance mode submits B2B invoices for pre-issuance clearance;
reporting mode reports B2C invoices after issuance.

Examples:
  clearance-engine submit invoice.json --mode clearance
  clearance-engine submit invoice.json --mode reporting --authority-url https://api.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitMode, "mode", "clearance", "Submission mode (clearance, reporting)")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 60*time.Second, "Overall submission timeout")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if submitMode != "clearance" && submitMode != "reporting" {
		return fmt.Errorf("unknown mode %q (use clearance or reporting)", submitMode)
	}
	if authorityURL == "" {
		return fmt.Errorf("--authority-url is required (or AUTHORITY_URL)")
	}

	inv, err := loadInvoice(args[0])
	if err != nil {
		return err
	}
	cert, err := loadCertificate()
	if err != nil {
		return err
	}

	log := newLogger()
	client := authority.NewClient(authority.Config{
		BaseURL:    authorityURL,
		APIVersion: apiVersion,
		Logger:     log,
	})
	eng := engine.New(
		engine.WithClient(client),
		engine.WithCertManager(certs.NewManager(client, log)),
		engine.WithChainStore(engine.NewMemoryChainStore()),
		engine.WithLogger(log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	printVerbose("Submitting invoice %s (%s)\n", inv.Number, submitMode)
	var result *model.SubmissionResult
	if submitMode == "clearance" {
		result = eng.ClearInvoice(ctx, inv, cert)
	} else {
		result = eng.ReportInvoice(ctx, inv, cert)
	}

	if err := outputJSON(result); err != nil {
		return err
	}
	if !result.Accepted() {
		return fmt.Errorf("submission was not accepted (status %s)", result.Status)
	}
	return nil
}
