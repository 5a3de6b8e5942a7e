package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/hashing"
	"github.com/rezonia/clearance-engine/internal/signing"
	"github.com/rezonia/clearance-engine/internal/validator"
)

var (
	signOutput   string
	signStrategy string
)

var signCmd = &cobra.Command{
	Use:   "sign [file]",
	Short: "Build and sign an invoice document",
	Long: `Build the canonical UBL document for an invoice and apply an XML
digital signature.

The signed document and its SHA-256 hash are written to stdout as JSON,
or the raw document to a file with --out.

Examples:
  clearance-engine sign invoice.json --cert cert.pem --key key.pem
  clearance-engine sign invoice.json --out signed.xml
  clearance-engine sign invoice.json --strategy detached`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVarP(&signOutput, "out", "o", "", "Write the signed document to a file instead of stdout")
	signCmd.Flags().StringVar(&signStrategy, "strategy", "auto", "Signing strategy (auto, embedded, detached)")
}

// SignOutput is the JSON result of the sign command
type SignOutput struct {
	UUID        string `json:"uuid"`
	InvoiceHash string `json:"invoice_hash"`
	Document    string `json:"document"`
}

func runSign(cmd *cobra.Command, args []string) error {
	inv, err := loadInvoice(args[0])
	if err != nil {
		return err
	}

	if result := validator.Validate(inv); !result.Valid {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  - [%s] %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("invoice is not valid, refusing to sign")
	}

	cert, err := loadCertificate()
	if err != nil {
		return err
	}

	var signer signing.Signer
	switch signStrategy {
	case "embedded":
		signer = signing.NewEmbeddedSigner()
	case "detached":
		signer = signing.NewDetachedSigner()
	case "auto":
		signer = signing.NewFallbackSigner(newLogger())
	default:
		return fmt.Errorf("unknown strategy %q (use auto, embedded or detached)", signStrategy)
	}

	document, id, err := canonical.Build(inv)
	if err != nil {
		return fmt.Errorf("failed to build document: %w", err)
	}

	printVerbose("Signing invoice %s (uuid %s)\n", inv.Number, id)
	signed, err := signer.Sign(document, cert)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}

	if signOutput != "" {
		if err := os.WriteFile(signOutput, []byte(signed), 0o644); err != nil {
			return fmt.Errorf("failed to write signed document: %w", err)
		}
		fmt.Printf("Signed document written to %s (hash %s)\n", signOutput, hashing.Hash(signed))
		return nil
	}

	return outputJSON(SignOutput{
		UUID:        id,
		InvoiceHash: hashing.Hash(signed),
		Document:    signed,
	})
}
