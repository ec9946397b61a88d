package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/tickerd/internal/delivery"
	"github.com/user/tickerd/internal/refresh"
	"github.com/user/tickerd/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tickerd daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "tickerd.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	svc, st, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	defer svc.Stop()

	slog.Info("tickerd started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"listen", cfg.HTTP.Listen,
		"refresh_schedule", cfg.Refresh.Schedule,
		"staleness_minutes", cfg.Refresh.StalenessMinutes,
		"pid_file", pidPath,
	)

	// Periodic refresh
	driver := refresh.NewDriver(cfg.Refresh.Schedule, func() {
		if err := svc.TriggerRefresh(); err != nil {
			slog.Error("scheduled refresh failed", "error", err)
		}
	})
	if err := driver.Start(); err != nil {
		return fmt.Errorf("start refresh driver: %w", err)
	}
	defer driver.Stop()

	// Outbound delivery
	sinks := delivery.NewRegistry()
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		sink, err := delivery.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("create telegram sink: %w", err)
		}
		sinks.Register(sink)
		slog.Info("telegram sink registered", "chat_id", cfg.Telegram.ChatID)
	} else {
		slog.Warn("telegram sink disabled (no token or chat id)")
	}
	if sinks.Len() > 0 {
		poller := delivery.NewPoller(svc, sinks, time.Duration(cfg.Delivery.PollSeconds)*time.Second)
		go poller.Run(ctx)
		slog.Info("delivery poller started", "poll_seconds", cfg.Delivery.PollSeconds)
	}

	// HTTP API
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: server.NewServer(svc),
	}
	go func() {
		slog.Info("http server started", "listen", cfg.HTTP.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
