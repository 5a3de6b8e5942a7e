package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/parser"
)

var (
	version = "1.0.0"

	// Global flags
	verbose          bool
	outputFormat     string
	authorityURL     string
	apiVersion       string
	environment      string
	certFile         string
	keyFile          string
	credentialID     string
	credentialSecret string
)

var rootCmd = &cobra.Command{
	Use:   "clearance-engine",
	Short: "Sign and clear e-invoices with the tax authority",
	Long: `Clearance Engine validates, signs and submits e-invoices to the tax
authority clearance and reporting APIs.

Supports:
  - Invoice validation (structural and business rules)
  - Deterministic UBL document building and SHA-256 hashing
  - XML digital signatures (enveloped, with detached fallback)
  - TLV QR payloads for offline verification
  - Clearance (B2B) and reporting (B2C) submission
  - Credential renewal ahead of certificate expiry

Examples:
  # Validate an invoice
  clearance-engine validate invoice.json

  # Sign an invoice and print the signed document
  clearance-engine sign invoice.json --cert cert.pem --key key.pem

  # Clear an invoice with the authority
  clearance-engine submit invoice.json --mode clearance

  # Start the HTTP API server
  clearance-engine serve --address :8080`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&authorityURL, "authority-url", "", "Authority API base URL (env: AUTHORITY_URL)")
	rootCmd.PersistentFlags().StringVar(&apiVersion, "api-version", "", "Authority Accept-Version header (env: AUTHORITY_API_VERSION)")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "", "Credential environment: sandbox, simulation, production (env: AUTHORITY_ENVIRONMENT)")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert", "", "Path to the signing certificate PEM (env: SIGNING_CERT_FILE)")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "Path to the signing key PEM (env: SIGNING_KEY_FILE)")
	rootCmd.PersistentFlags().StringVar(&credentialID, "credential-id", "", "Authority credential identifier (env: AUTHORITY_CREDENTIAL_ID)")
	rootCmd.PersistentFlags().StringVar(&credentialSecret, "credential-secret", "", "Authority credential secret (env: AUTHORITY_CREDENTIAL_SECRET)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	if authorityURL == "" {
		authorityURL = os.Getenv("AUTHORITY_URL")
	}
	if apiVersion == "" {
		apiVersion = os.Getenv("AUTHORITY_API_VERSION")
	}
	if environment == "" {
		environment = os.Getenv("AUTHORITY_ENVIRONMENT")
	}
	if certFile == "" {
		certFile = os.Getenv("SIGNING_CERT_FILE")
	}
	if keyFile == "" {
		keyFile = os.Getenv("SIGNING_KEY_FILE")
	}
	if credentialID == "" {
		credentialID = os.Getenv("AUTHORITY_CREDENTIAL_ID")
	}
	if credentialSecret == "" {
		credentialSecret = os.Getenv("AUTHORITY_CREDENTIAL_SECRET")
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// loadCertificate assembles the signing credential from the configured
// flags and environment. Expiry comes from the parsed certificate's
// NotAfter so the renewal gate sees the real lifetime.
func loadCertificate() (*model.Certificate, error) {
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("both --cert and --key are required (or SIGNING_CERT_FILE / SIGNING_KEY_FILE)")
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	parsed, _, err := certs.ParseCertificate(string(certPEM))
	if err != nil {
		return nil, fmt.Errorf("invalid certificate: %w", err)
	}

	env := model.Environment(environment)
	if environment == "" {
		env = model.EnvironmentSandbox
	}

	return &model.Certificate{
		CredentialID:   credentialID,
		Secret:         credentialSecret,
		PrivateKeyPEM:  string(keyPEM),
		CertificatePEM: string(certPEM),
		Environment:    env,
		ExpiresAt:      parsed.NotAfter,
	}, nil
}

// loadInvoice reads an invoice file: JSON, or a UBL document when the
// file carries an .xml extension.
func loadInvoice(path string) (*model.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".xml") {
		inv, err := parser.ParseUBLBytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse invoice document: %w", err)
		}
		return inv, nil
	}

	var inv model.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse invoice JSON: %w", err)
	}
	return &inv, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
