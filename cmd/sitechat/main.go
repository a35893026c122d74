package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"site-creator/internal/auth"
	"site-creator/internal/config"
	"site-creator/internal/integrations/paramstore"
	"site-creator/internal/integrations/provisioning"
	"site-creator/internal/notify"
	"site-creator/internal/registry"
	"site-creator/internal/session"
	"site-creator/internal/tui"
)

var cfg = config.ClientDefaults(os.Getenv)

var rootCmd = &cobra.Command{
	Use:   "sitechat",
	Short: "Create sites by describing them in a chat",
	Long: `sitechat is a terminal client for the site provisioning service.

Enter the access code, then describe the site you want in the Конструктор tab
or pick a preset from Шаблоны. Created sites appear under Мои сайты.`,
	SilenceUsage: true,
	RunE:         runInteractive,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.CreateURL, "create-url", cfg.CreateURL, "provisioning create endpoint ($"+config.EnvCreateURL+")")
	flags.StringVar(&cfg.ListURL, "list-url", cfg.ListURL, "provisioning list endpoint ($"+config.EnvListURL+")")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP timeout per request ($"+config.EnvHTTPTimeout+")")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "where to write JSON logs")

	flags.StringVar(&cfg.AccessCode, "access-code", cfg.AccessCode, "expected access code ($"+config.EnvAccessCode+")")
	flags.StringVar(&cfg.AccessCodeParam, "access-code-param", cfg.AccessCodeParam, "SSM parameter holding the access code ($"+config.EnvAccessCodeParam+")")

	rootCmd.AddCommand(createCmd, listCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(true); err != nil {
		return err
	}
	ctx := cmd.Context()

	logger, closeLog, err := openLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	secret, err := resolveAccessCode(ctx, cfg)
	if err != nil {
		logger.Error("failed to resolve access code", "err", err)
		return err
	}
	client, err := newProvisioningClient(cfg)
	if err != nil {
		return err
	}

	toasts := notify.NewChannel(16)
	notifier := notify.Fanout{notify.NewLogger(logger), toasts}
	gate, err := auth.NewGate(secret, notifier, logger)
	if err != nil {
		return err
	}
	reg := registry.New()

	model, err := tui.New(tui.Options{
		Context: ctx,
		Gate:    gate,
		Open: func(id session.Identity) (tui.Workspace, error) {
			o, err := newOrchestrator(id, client, reg, notifier, logger)
			if err != nil {
				return nil, err
			}
			return o, nil
		},
		Notifications: toasts.C(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	logger.Info("sitechat started", "create_url", cfg.CreateURL, "list_url", cfg.ListURL)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("sitechat: run ui: %w", err)
	}
	return nil
}

// openLogger sends structured logs to path because the UI owns the terminal.
func openLogger(path string) (*slog.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("sitechat: open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
	return logger, func() { _ = f.Close() }, nil
}

func resolveAccessCode(ctx context.Context, c config.Client) (string, error) {
	if c.AccessCode != "" {
		return c.AccessCode, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("sitechat: load AWS config: %w", err)
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	return ps.GetParameter(ctx, c.AccessCodeParam)
}

func newProvisioningClient(c config.Client) (*provisioning.Client, error) {
	return provisioning.NewClient(c.CreateURL, c.ListURL, provisioning.WithTimeout(c.Timeout))
}
