package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/qr"
	"github.com/rezonia/clearance-engine/internal/validator"
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Encode and decode TLV QR payloads",
}

var qrEncodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Encode the TLV QR payload for an invoice",
	Long: `Encode the offline-verification QR payload for an invoice: seller name,
tax registration number, issue timestamp, total and VAT amount packed as
TLV and base64 encoded.

Examples:
  clearance-engine qr encode invoice.json`,
	Args: cobra.ExactArgs(1),
	RunE: runQREncode,
}

var qrDecodeCmd = &cobra.Command{
	Use:   "decode [payload]",
	Short: "Decode a base64 TLV QR payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runQRDecode,
}

func init() {
	rootCmd.AddCommand(qrCmd)
	qrCmd.AddCommand(qrEncodeCmd)
	qrCmd.AddCommand(qrDecodeCmd)
}

func runQREncode(cmd *cobra.Command, args []string) error {
	inv, err := loadInvoice(args[0])
	if err != nil {
		return err
	}
	if result := validator.Validate(inv); !result.Valid {
		return fmt.Errorf("invoice is not valid, refusing to encode")
	}

	payload, err := qr.Encode(qr.Payload{
		SellerName: inv.Seller.Name,
		VATNumber:  inv.Seller.VATNumber,
		Timestamp:  inv.IssueDate + "T" + inv.IssueTime + "Z",
		Total:      inv.Total,
		VATAmount:  inv.VATAmount,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	fmt.Println(payload)
	return nil
}

func runQRDecode(cmd *cobra.Command, args []string) error {
	payload, err := qr.Decode(args[0])
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return outputJSON(payload)
}
