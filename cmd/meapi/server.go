package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/meapi/internal/api"
	"github.com/kalambet/meapi/internal/client"
	"github.com/kalambet/meapi/internal/config"
	"github.com/kalambet/meapi/internal/profile"
	"github.com/kalambet/meapi/internal/storage"
	"github.com/kalambet/meapi/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profile API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show API server and web front end status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the web front end against the profile API",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return runWeb(port)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the sample profiles into local storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := store.Seed(storage.SampleProfiles)
		if err != nil {
			return err
		}
		if n == 0 {
			printWarning("Sample profiles already present")
			return nil
		}
		printSuccess("Seeded %s", profileCount(n))
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
	webCmd.Flags().Int("port", 0, "listen port (default: web.port)")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "meapi.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func serverAddr(cfg config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "meapi version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Refuse to start twice. Check the health endpoint before touching the PID file.
	addr := serverAddr(cfg)
	pidPath := pidFilePath(cfg.Storage.DataDir)
	probe := client.New("http://"+addr, client.WithTimeout(2*time.Second))
	if probe.Health(ctx) == nil {
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("meapi is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("meapi is already running on %s", addr)
		return fmt.Errorf("server already running on %s", addr)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	profiles := profile.NewManager(store)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewAppHandler(api.AppDeps{Profiles: profiles, Logger: slog.Default()}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "meapi listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		// stdout belongs to the MCP transport from here on.
		stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Profiles: profiles, Version: version}))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runWeb(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Web.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := client.New(baseURL(cfg), client.WithTimeout(cfg.APITimeout()), client.WithLogger(slog.Default()))
	if err := apiClient.Health(ctx); err != nil {
		printWarning("profile API at %s is not reachable yet: %v", apiClient.BaseURL(), err)
	}

	srv := web.NewServer(apiClient, web.Options{
		SessionTTL:     cfg.SessionTTL(),
		BannerDuration: cfg.BannerDuration(),
		Logger:         slog.Default(),
	})
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))
	printStep("Web front end on http://%s (API %s)", addr, apiClient.BaseURL())
	return srv.Run(ctx, addr)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("meapi is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop meapi (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to meapi (PID %d)", pid)
	return nil
}

// probeResult is one line of the status report.
type probeResult struct {
	label string
	state string
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	webURL := "http://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Web.Port))
	results := make([]probeResult, 2)

	var g errgroup.Group
	g.Go(func() error {
		c := client.New(baseURL(cfg), client.WithTimeout(2*time.Second))
		results[0] = probeResult{label: "API"}
		if err := c.Health(ctx); err != nil {
			results[0].state = "stopped"
			return nil
		}
		results[0].state = "running at " + c.BaseURL()
		if profiles, err := c.ListProfiles(ctx); err == nil {
			results[0].state += " (" + profileCount(len(profiles)) + ")"
		}
		return nil
	})
	g.Go(func() error {
		results[1] = probeResult{label: "Web", state: "stopped"}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, webURL+"/static/style.css", nil)
		if err != nil {
			return nil
		}
		resp, err := (&http.Client{Timeout: 2 * time.Second}).Do(req)
		if err != nil {
			return nil
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			results[1].state = "running at " + webURL
		} else {
			results[1].state = fmt.Sprintf("error (HTTP %d)", resp.StatusCode)
		}
		return nil
	})
	g.Wait()

	for _, r := range results {
		printStatus(r.label, "%s", r.state)
	}
	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
