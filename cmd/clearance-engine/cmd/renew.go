package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/certs"
)

var (
	renewThreshold time.Duration
	renewForce     bool
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew the authority credential",
	Long: `Renew the signing credential through the authority when it is within
the renewal threshold of expiry.

The renewed credential identifier and secret are printed once; store
them securely, they are not persisted anywhere.

Examples:
  clearance-engine renew --cert cert.pem --key key.pem --credential-id <id> --credential-secret <secret>
  clearance-engine renew --force`,
	RunE: runRenew,
}

func init() {
	rootCmd.AddCommand(renewCmd)

	renewCmd.Flags().DurationVar(&renewThreshold, "threshold", certs.DefaultRenewalThreshold, "Renew when expiry is within this window")
	renewCmd.Flags().BoolVar(&renewForce, "force", false, "Renew regardless of remaining validity")
}

// RenewOutput is the JSON result of the renew command
type RenewOutput struct {
	Renewed      bool   `json:"renewed"`
	CredentialID string `json:"credential_id"`
	Secret       string `json:"secret,omitempty"`
	ExpiresAt    string `json:"expires_at"`
}

func runRenew(cmd *cobra.Command, args []string) error {
	if authorityURL == "" {
		return fmt.Errorf("--authority-url is required (or AUTHORITY_URL)")
	}
	cert, err := loadCertificate()
	if err != nil {
		return err
	}

	threshold := renewThreshold
	if renewForce {
		// A threshold beyond the assumed validity always triggers renewal
		threshold = 10 * 365 * 24 * time.Hour
	}

	log := newLogger()
	client := authority.NewClient(authority.Config{
		BaseURL:    authorityURL,
		APIVersion: apiVersion,
		Logger:     log,
	})
	manager := certs.NewManager(client, log, certs.WithThreshold(threshold))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	renewed, err := manager.RenewIfNeeded(ctx, cert)
	if err != nil {
		return fmt.Errorf("renewal failed: %w", err)
	}

	out := RenewOutput{
		Renewed:      renewed != cert,
		CredentialID: renewed.CredentialID,
		ExpiresAt:    renewed.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if out.Renewed {
		out.Secret = renewed.Secret
	}
	return outputJSON(out)
}
