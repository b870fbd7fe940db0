package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-service/internal/logger"
	"github.com/rezonia/facturx-service/internal/server"
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
	Long: `Start an HTTP API server for generating Factur-X documents.

The API provides endpoints for:
  - POST /api/v1/invoices/generate  - Generate a compliant PDF
  - POST /api/v1/invoices/xml       - Generate the CII XML only
  - POST /api/v1/invoices/validate  - Validate invoice data
  - POST /api/v1/invoices/inspect   - Extract embedded XML from a PDF
  - GET  /health                    - Health check

Examples:
  # Start server on default port
  facturx serve

  # Start on a custom port in debug mode
  facturx serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 60*time.Second, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	format := "console"
	if !serverDebug {
		format = "json"
	}
	log, err := logger.Setup(logger.Config{Level: logLevel, Format: format, Output: "stderr"})
	if err != nil {
		return err
	}

	config := &server.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}

	srv := server.NewServer(config, log)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	return srv.Run()
}
