package cmd

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chew-z/workers-ai-proxy/internal/config"
	"github.com/chew-z/workers-ai-proxy/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the HTTP server that accepts OpenAI-compatible requests
and forwards them to Cloudflare Workers AI.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", "127.0.0.1", "Host to bind the server to")
	serveCmd.Flags().IntP("port", "p", 8787, "Port to listen on")
	serveCmd.Flags().BoolP("debug", "d", false, "Enable debug mode (verbose logging)")
	serveCmd.Flags().BoolP("verbose", "v", false, "Enable terminal output")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.AccessToken == "" {
		log.Fatal("Access token is not configured. Run 'workers-ai-proxy config set access_token YOUR_TOKEN' or set GATEWAY_ACCESS_TOKEN.")
	}

	host, err := cmd.Flags().GetString("host")
	if err != nil {
		log.Fatalf("Failed to get host flag: %v", err)
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		log.Fatalf("Failed to get port flag: %v", err)
	}

	// Flags win over config, config wins over the flag defaults.
	if host == "127.0.0.1" && cfg.Host != "" {
		host = cfg.Host
	}
	if port == 8787 && cfg.Port != 0 {
		port = cfg.Port
	}

	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		log.Fatalf("Failed to get debug flag: %v", err)
	}
	if debug {
		cfg.Debug = true
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		log.Fatalf("Failed to get verbose flag: %v", err)
	}
	if verbose {
		cfg.Verbose = true
	}

	srv, err := server.NewServer(cfg, host, port)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	go func() {
		if cfg.Verbose {
			log.Printf("Starting server on %s:%d", host, port)
			log.Printf("Workers AI base URL: %s", cfg.BaseURL)
		}
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := server.CreateShutdownContext(30 * time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
