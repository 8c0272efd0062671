package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the Pinalbum HTTP API.
The API lets a map client pin locations, watch album downloads as server-sent
events and fetch the downloaded photos. Interrupted downloads are resumed on start.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("no-resume", false, "Do not resume interrupted album downloads on start")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := requireFlickrKey(cfg); err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if !mustGetBool(cmd, "no-resume") {
		go func() {
			if err := engine.Resume(ctx); err != nil {
				klog.ErrorS(err, "Some albums could not be resumed")
			}
		}()
	}

	server := web.NewServer(cfg, engine)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			klog.ErrorS(err, "Error during shutdown")
		}
	}()

	fmt.Printf("Starting Pinalbum API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
