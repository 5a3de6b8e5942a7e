package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/clearance-engine/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for validating, clearing and reporting
invoices.

The API provides endpoints for:
  - POST /api/v1/invoices/validate     - Validate an invoice
  - POST /api/v1/invoices/clearance    - Clear a B2B invoice
  - POST /api/v1/invoices/reporting    - Report a B2C invoice
  - POST /api/v1/certificates/renewal  - Renew the signing credential
  - POST /api/v1/qr/decode             - Decode a TLV QR payload
  - GET  /health                       - Health check

Examples:
  # Start server on default port
  clearance-engine serve

  # Start with authority access and a signing credential
  clearance-engine serve --authority-url https://api.example.com --cert cert.pem --key key.pem

  # Start in debug mode
  clearance-engine serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 2*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	config := &server.Config{
		Address:      serverAddr,
		AuthorityURL: authorityURL,
		APIVersion:   apiVersion,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
		Logger:       newLogger(),
	}

	// The signing credential is optional; without one the server still
	// validates invoices and decodes QR payloads.
	if certFile != "" && keyFile != "" {
		cert, err := loadCertificate()
		if err != nil {
			return err
		}
		config.Certificate = cert
	}

	srv := server.NewServer(config)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	if config.Certificate != nil {
		fmt.Println("Submission enabled (signing credential loaded)")
	} else {
		fmt.Println("Submission disabled (no signing credential)")
	}

	return srv.Run()
}
