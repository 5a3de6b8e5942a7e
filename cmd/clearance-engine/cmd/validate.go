package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate invoice files",
	Long: `Validate one or more invoice JSON files for completeness and correctness.

Checks performed:
  - Required fields present (number, type, dates, seller)
  - Tax registration number format (15 digits)
  - VAT rates against the allowed set (0, 5, 15)
  - Line and document totals (subtotal + VAT = total, 0.01 tolerance)
  - Credit/debit note chain reference

Examples:
  clearance-engine validate invoice.json
  clearance-engine validate invoices/*.json -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// FileValidation pairs a file path with its validation findings
type FileValidation struct {
	File     string                    `json:"file"`
	Valid    bool                      `json:"valid"`
	Errors   []model.ValidationMessage `json:"errors,omitempty"`
	Warnings []model.ValidationMessage `json:"warnings,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	results := make([]*FileValidation, 0, len(args))
	allValid := true

	for _, file := range args {
		printVerbose("Validating: %s\n", file)

		entry := &FileValidation{File: file}
		inv, err := loadInvoice(file)
		if err != nil {
			entry.Errors = append(entry.Errors, model.ValidationMessage{
				Code: "FILE", Message: err.Error(),
			})
		} else {
			result := validator.Validate(inv)
			entry.Valid = result.Valid
			entry.Errors = result.Errors
			entry.Warnings = result.Warnings
		}

		if !entry.Valid {
			allValid = false
		}
		results = append(results, entry)
	}

	if outputFormat == "json" {
		if err := outputJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("✓ %s: VALID\n", r.File)
			} else {
				fmt.Printf("✗ %s: INVALID\n", r.File)
				for _, e := range r.Errors {
					fmt.Printf("  - [%s] %s\n", e.Code, e.Message)
				}
			}
			for _, w := range r.Warnings {
				fmt.Printf("  ⚠ [%s] %s\n", w.Code, w.Message)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}
