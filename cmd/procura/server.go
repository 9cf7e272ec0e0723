package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

	"github.com/kalambet/procura/internal/api"
	"github.com/kalambet/procura/internal/assistant"
	"github.com/kalambet/procura/internal/config"
	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/extract"
	"github.com/kalambet/procura/internal/jobs"
	"github.com/kalambet/procura/internal/mail"
	"github.com/kalambet/procura/internal/storage"
	"github.com/kalambet/procura/internal/vendors"
	"github.com/kalambet/procura/internal/workflow"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the procura server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpStdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running procura server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show procura system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "procura.pid")
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

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "procura version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("procura is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("procura is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(ctx, engine.DetectConfig{
		Provider:      cfg.LLM.Provider,
		Temperature:   cfg.LLM.Temperature,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OllamaModel:   cfg.Ollama.Model,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIModel:   cfg.OpenAI.Model,
		OpenAIKey:     cfg.OpenAI.APIKey,
		GeminiModel:   cfg.Gemini.Model,
		GeminiKey:     cfg.Gemini.APIKey,
	})
	if err != nil {
		return fmt.Errorf("detecting language model backend: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, eng.Model(), os.Stderr); err != nil {
		return err
	}
	slog.Info("language model ready", "backend", eng.Name(), "model", eng.Model())

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	dir := vendors.NewDirectory(store)
	asst := assistant.New(eng, eng.Model()).WithTimeout(cfg.LLMTimeout())

	deps := workflow.Deps{
		Assistant: asst,
		Extractor: extract.New(eng, eng.Model()),
		Narrator:  asst,
	}
	if cfg.MailEnabled() {
		deps.Sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
	} else {
		slog.Warn("smtp not configured, RFPs cannot be sent")
	}
	var inbox *mail.IMAPReader
	if cfg.IMAP.Host != "" {
		inbox = mail.NewIMAPReader(mail.IMAPConfig{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			Mailbox:  cfg.IMAP.Mailbox,
			Insecure: cfg.IMAP.Insecure,
		})
		deps.Inbox = inbox
	}

	svc := workflow.New(store, dir, deps, workflow.Config{Parallelism: cfg.Evaluation.Parallelism})
	queue := jobs.NewQueue(store)

	appHandler := api.NewAppHandler(api.AppDeps{
		Service: svc,
		Vendors: dir,
		Queue:   queue,
		Token:   cfg.Server.Token,
	})
	if cfg.Server.Token == "" {
		slog.Warn("server.token is empty, the API accepts unauthenticated requests")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           appHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if n, err := store.RequeueRunningJobs(); err != nil {
		slog.Warn("requeueing interrupted jobs", "error", err)
	} else if n > 0 {
		slog.Info("requeued interrupted jobs", "count", n)
	}

	worker := jobs.NewWorker(store, svc, 500*time.Millisecond)
	go worker.Run(ctx)

	if cfg.Inbox.Enabled && inbox != nil {
		poller := jobs.NewPoller(inbox, queue, cfg.PollInterval())
		go poller.Run(ctx)
		slog.Info("inbox polling enabled", "mailbox", cfg.IMAP.Mailbox, "interval", cfg.PollInterval())
	}

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Service: svc, Queue: queue})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "procura listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
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
		printError("procura is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop procura (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to procura (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	running := false
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("LLM provider", "%s", cfg.LLM.Provider)
	printStatus("SMTP", "%s", configured(cfg.MailEnabled(), cfg.SMTP.Host))
	printStatus("IMAP", "%s", configured(cfg.IMAP.Host != "", cfg.IMAP.Host))
	if cfg.Inbox.Enabled {
		printStatus("Inbox polling", "every %s", cfg.PollInterval())
	} else {
		printStatus("Inbox polling", "disabled")
	}

	if running {
		c, err := newAPIClient()
		if err == nil {
			if resp, err := c.get(ctx, "/rfps?limit=100"); err == nil {
				var rfps []struct {
					Status string `json:"status"`
				}
				if decodeJSON(resp, &rfps) == nil {
					counts := map[string]int{}
					for _, r := range rfps {
						counts[r.Status]++
					}
					printStatus("RFPs", "%s (%d draft, %d sent, %d closed)",
						countLabel(len(rfps), 100), counts["draft"], counts["sent"], counts["closed"])
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func configured(ok bool, host string) string {
	if !ok {
		return "not configured"
	}
	return host
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
