package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/aida/core/session"
	"github.com/koscakluka/aida/internal/config"
	"github.com/koscakluka/aida/internal/metrics"
)

var (
	configPath    = flag.String("config", "", "Path to the YAML configuration file")
	logFile       = flag.String("log-file", "aida.log", "Log file path used while the TUI is running")
	noTUI         = flag.Bool("no-tui", false, "Disable the TUI and stream logs to stderr")
	textMode      = flag.Bool("text", false, "Chat by typing instead of speaking")
	pruneMemories = flag.Duration("prune-memories", 0, "Remove memories older than the given age and exit")
	clearMemories = flag.Bool("clear-memories", false, "Remove all memories of the user and exit")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "aida:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	useTUI := !*noTUI && !*textMode
	closeLog, err := setupLogging(cfg.Logging, useTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openMemory(ctx, cfg.Memory)
	if err != nil {
		return err
	}
	defer closeStore()

	aida, err := newAssistant(cfg, store)
	if err != nil {
		return err
	}

	switch {
	case *clearMemories:
		if err := aida.ClearMemories(ctx); err != nil {
			return err
		}
		fmt.Println("Cleared all memories.")
		return nil
	case *pruneMemories > 0:
		removed, err := aida.PruneMemories(ctx, *pruneMemories)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d memories older than %s.\n", removed, *pruneMemories)
		return nil
	case *textMode:
		return chat(ctx, aida, os.Stdin, os.Stdout)
	}

	m := metrics.New()
	shutdownMetrics, err := installMetrics(m)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownMetrics(shutdownCtx)
	}()
	if cfg.Metrics.Listen != "" {
		server := serveMetrics(cfg.Metrics.Listen, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	var program *tea.Program
	observer := func(status session.Status) {
		m.Observe(status)
		if program != nil {
			program.Send(statusMsg(status))
		} else {
			logStatus(status)
		}
	}
	if useTUI {
		program = tea.NewProgram(newModel(cfg.Session.UserID), tea.WithAltScreen())
	}

	engine, err := newVoice(cfg, aida, observer)
	if err != nil {
		return err
	}
	defer engine.Close()

	if program == nil {
		return engine.orchestrator.Run(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		err := engine.orchestrator.Run(runCtx)
		program.Send(runDoneMsg{err: err})
		done <- err
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("tui failed: %w", err)
	}
	cancel()
	return <-done
}

func setupLogging(cfg config.LoggingConfig, useTUI bool) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	path := cfg.File
	if path == "" && useTUI {
		path = *logFile
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		closeLog = func() { _ = f.Close() }
		if useTUI {
			out = f
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	shutdown, err := installLogging(out, level)
	if err != nil {
		closeLog()
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "aida: failed to flush logs:", err)
		}
		closeLog()
	}, nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return server
}

func logStatus(status session.Status) {
	attrs := []any{"state", status.State, "session", status.SessionID}
	switch {
	case status.Err != nil:
		slog.Error("session error", append(attrs, "error", status.Err)...)
		return
	case status.Utterance != "":
		attrs = append(attrs, "utterance", status.Utterance)
	case status.Reply != "":
		attrs = append(attrs, "reply", status.Reply)
	case status.Interim != "":
		slog.Debug("session status", append(attrs, "interim", status.Interim)...)
		return
	}
	slog.Info("session status", attrs...)
}
