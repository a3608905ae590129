package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careerlink/answer-stream/internal/core"
	"github.com/careerlink/answer-stream/internal/stream/history"
	"github.com/careerlink/answer-stream/internal/stream/model"
	"github.com/careerlink/answer-stream/internal/stream/repo"
	"github.com/careerlink/answer-stream/internal/stream/session"
	"github.com/careerlink/answer-stream/internal/stream/tracker"
	"github.com/careerlink/answer-stream/internal/stream/transport"
	"github.com/careerlink/answer-stream/internal/view"
	logx "github.com/careerlink/answer-stream/pkg/logger"
	pkgredis "github.com/careerlink/answer-stream/pkg/redis"
)

// AppConfig defines all configurable parameters of the client,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// Answer stream
	Transport model.TransportConfig
	Session   model.SessionConfig
	History   model.HistoryConfig
}

var (
	envFile   string
	logFile   string
	sessionID string
	width     int
	sources   bool
)

var rootCmd = &cobra.Command{
	Use:   "answer",
	Short: "Streaming answer client",
	Long: `answer asks the search backend a question and renders the streamed
answer, the agents working on it and the sources it cites.

Run "answer ask <question>" for a one-shot answer page or "answer chat" for
the interactive panel.`,
	SilenceUsage: true,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and print the answer page",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat panel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "continue an existing session id")

	askCmd.Flags().IntVar(&width, "width", 100, "wrap width of the answer page")
	askCmd.Flags().BoolVar(&sources, "sources", false, "show the sources list instead of the answer")

	rootCmd.AddCommand(askCmd, chatCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env (when present) and binds the environment.
func loadConfig() (AppConfig, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment config: %w", err)
	}
	return cfg, nil
}

// initLogger routes logs away from stdout. Interactive mode discards them
// unless a log file is given.
func initLogger(env core.Environment, interactive bool) (func(), error) {
	var out io.Writer
	closeFn := func() {}

	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		if !env.IsProduction() {
			out = zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339}
		}
		closeFn = func() { _ = f.Close() }
	case interactive:
		out = io.Discard
	case env.IsProduction():
		out = os.Stderr
	default:
		out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })
	}

	logx.Init(logx.LoggerOpts{Environment: env, Output: out})
	return closeFn, nil
}

type app struct {
	transport *transport.HTTPTransport
	history   *history.Manager
	tracker   *tracker.Tracker
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(interactive bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{}
	closeLog, err := initLogger(core.ParseEnvironment(cfg.Environment), interactive)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeLog)

	ttl, err := time.ParseDuration(cfg.History.TTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid HISTORY_TTL %q: %w", cfg.History.TTL, err)
	}

	var transcripts model.TranscriptRepository
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialise redis client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		transcripts = repo.NewRedisTranscriptRepository(rdb, ttl)
		logx.Info().Msg("recording transcripts in redis")
	} else {
		transcripts = repo.NewMemoryTranscriptRepository(ttl)
	}
	a.history = history.NewManager(transcripts, cfg.History)

	a.transport, err = transport.NewHTTPTransport(cfg.Transport)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = tracker.New(tracker.WithMinDisplay(cfg.Session.AgentMinDisplay))
	return a, nil
}

func runAsk(ctx context.Context, query string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := session.New(a.transport,
		session.WithTracker(a.tracker),
		session.WithRecorder(a.history),
		session.WithOnLoginRequired(func(e model.SessionError) {
			fmt.Fprintln(os.Stderr, "Sign in required: set ANSWER_API_TOKEN and try again.")
		}),
	)
	defer ctrl.Close()

	page := view.NewSearchPage(ctrl, view.NewRenderer(width, ""))
	if !page.Resume(query, sessionID) {
		return errors.New("empty question")
	}
	if sources {
		page.SetViewMode(view.ModeSources)
	}

	snap, err := ctrl.Await(ctx)
	if err != nil {
		ctrl.Cancel()
		return err
	}
	fmt.Println(page.Render(width))
	if snap.Error != nil {
		return errors.New(snap.Error.Message)
	}
	if snap.SessionID != "" {
		fmt.Fprintf(os.Stderr, "\nsession: %s\n", snap.SessionID)
	}
	return nil
}

func runChat(ctx context.Context) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	var prog atomic.Pointer[tea.Program]
	ctrl := session.New(a.transport,
		session.WithTracker(a.tracker),
		session.WithRecorder(a.history),
		session.WithOnChange(func(s model.Snapshot) {
			if p := prog.Load(); p != nil {
				p.Send(view.SnapshotMsg{Snapshot: s})
			}
		}),
		session.WithOnLoginRequired(func(e model.SessionError) {
			logx.Warn().Str("code", e.Code).Msg("server asked for login")
		}),
	)
	defer ctrl.Close()

	panel := view.NewChatPanel(ctrl, view.NewRenderer(80, ""),
		view.WithHistory(a.history),
		view.WithResume(sessionID),
	)
	p := tea.NewProgram(panel, tea.WithAltScreen(), tea.WithContext(ctx))
	prog.Store(p)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat panel: %w", err)
	}
	return nil
}
