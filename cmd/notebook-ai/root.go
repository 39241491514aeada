package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/notebook-ai/cli/config"
	"github.com/notebook-ai/cli/internal/conversation"
	"github.com/notebook-ai/cli/internal/gateway"
	"github.com/notebook-ai/cli/internal/logging"
	"github.com/notebook-ai/cli/internal/session"
	"github.com/notebook-ai/cli/internal/speech"
	"github.com/notebook-ai/cli/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "notebook-ai",
	Short: "Chat with your documents from the terminal",
	Long: `notebook-ai uploads documents to a document question-answering backend
and lets you ask questions about them, summarize them, generate study
questions and extract keywords. Without a subcommand it starts the
interactive terminal UI.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ~/.notebook-ai/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print warnings to stderr")
}

// app wires the components every command needs
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	state  *storage.Adapter
	client *gateway.Client
	store  *session.Store
	conv   *conversation.Controller
	speech *speech.Bridge
}

// loadConfig loads and validates the config
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{
		File:    cfg.Logging.File,
		Level:   cfg.Logging.Level,
		Console: console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	state, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}

	client := gateway.NewClient(cfg.Backend.BaseURL,
		gateway.WithTimeout(cfg.Backend.Timeout),
		gateway.WithProgressRate(cfg.Backend.ProgressPerSec),
		gateway.WithLogger(log),
	)

	store := session.NewStore(state, client,
		session.WithProcessingGrace(cfg.Session.ProcessingGrace),
		session.WithLogger(log),
	)
	store.Initialize()

	var synthesizer speech.Synthesizer
	if s, err := speech.NewCommandSynthesizer(cfg.Speech.SynthesizerCmd, log); err == nil {
		synthesizer = s
	} else {
		log.Info("speech output disabled", zap.Error(err))
	}
	var recognizer speech.Recognizer
	if r, err := speech.NewCommandRecognizer(cfg.Speech.RecognizerCmd, cfg.Speech.RecognizerArgs, log); err == nil {
		recognizer = r
	} else {
		log.Info("speech input disabled", zap.Error(err))
	}
	bridge := speech.NewBridge(synthesizer, recognizer, state, cfg.Speech.Locale, log)

	return &app{
		cfg:    cfg,
		log:    log,
		state:  state,
		client: client,
		store:  store,
		conv:   conversation.New(client, bridge, log),
		speech: bridge,
	}, nil
}

func (a *app) Close() {
	if err := a.state.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

// withApp builds the app for a command and closes it afterwards
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}
