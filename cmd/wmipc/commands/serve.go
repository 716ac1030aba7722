package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/wmipc/internal/bridge"
	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket bridge",
	Long: `Start an HTTP server that forwards requests to the window manager.

Endpoints:
  GET  /api/health           bridge status
  POST /api/messages/{type}  send one message, body is the payload
  GET  /api/events?types=... WebSocket stream of events
  GET  /metrics              Prometheus metrics`,
	Example: `  # Start on the configured address (default 127.0.0.1:8719)
  wmipc serve

  # Listen elsewhere
  wmipc serve --listen 127.0.0.1:9000

  # Query through the bridge
  curl -X POST 'http://127.0.0.1:8719/api/messages/get_version?pretty=1'`,
	RunE: runServe,
}

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from config bridge.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := socketPath()
	if err != nil {
		return err
	}

	listen := cfg.Bridge.Listen
	if serveListen != "" {
		listen = serveListen
	}

	server, err := bridge.NewServer(path, cfg.Bridge)
	if err != nil {
		return err
	}

	log := logger.WithComponent("serve")
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(listen)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Bridge listening on http://%s (socket %s)\n", listen, path)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
	}

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
