package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"site-creator/internal/auth"
	"site-creator/internal/config"
	"site-creator/internal/conversation"
	"site-creator/internal/domain"
	"site-creator/internal/notify"
	"site-creator/internal/registry"
	"site-creator/internal/session"
	"site-creator/internal/usecase"
)

var sessionToken string

var createCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a site from a description without the interactive UI",
	Long: `Submit one description and print the resulting conversation.

The access code is checked exactly as in the interactive UI: pass it with
--code or $SITECHAT_CODE. The issued session token is printed so the session
can be listed later.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sites created in a session",
	RunE:  runList,
}

func init() {
	createCmd.Flags().StringVar(&cfg.Code, "code", cfg.Code, "access code to enter at the gate ($"+config.EnvCode+")")
	listCmd.Flags().StringVar(&sessionToken, "session", "", "session token to list (required)")
	_ = listCmd.MarkFlagRequired("session")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(true); err != nil {
		return err
	}
	secret, err := resolveAccessCode(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	logger, printer := batchSinks(cmd)
	id, err := enterGate(secret, cfg.Code, printer, logger)
	if err != nil {
		return err
	}
	o, err := newBatchOrchestrator(id, printer, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session: %s\n\n", id.Token())
	outcome := o.Submit(cmd.Context(), strings.Join(args, " "))
	printConversation(out, o.Conversation())
	if outcome.Status != usecase.OutcomeSucceeded {
		if outcome.Err != nil {
			return outcome.Err
		}
		return fmt.Errorf("sitechat: create %s", outcome.Status)
	}
	if outcome.RefreshErr != nil {
		fmt.Fprintf(out, "\n(не удалось обновить список сайтов: %v)\n", outcome.RefreshErr)
		return nil
	}
	fmt.Fprintln(out)
	printProjects(out, o.Projects())
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	id, err := session.FromToken(sessionToken)
	if err != nil {
		return err
	}
	logger, printer := batchSinks(cmd)
	o, err := newBatchOrchestrator(id, printer, logger)
	if err != nil {
		return err
	}
	if err := o.Refresh(cmd.Context()); err != nil {
		return err
	}
	printProjects(cmd.OutOrStdout(), o.Projects())
	return nil
}

// enterGate runs code through the same gate the interactive UI uses. Only a
// match issues a session.
func enterGate(secret, code string, n notify.Sink, logger *slog.Logger) (session.Identity, error) {
	gate, err := auth.NewGate(secret, n, logger)
	if err != nil {
		return session.Identity{}, err
	}
	return gate.Authenticate(code)
}

// batchSinks sends warnings and notifications to stderr.
func batchSinks(cmd *cobra.Command) (*slog.Logger, notify.Sink) {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	printer := notify.Func(func(n domain.Notification) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Title, n.Description)
	})
	return logger, printer
}

func newBatchOrchestrator(id session.Identity, n notify.Sink, logger *slog.Logger) (*usecase.Orchestrator, error) {
	client, err := newProvisioningClient(cfg)
	if err != nil {
		return nil, err
	}
	return newOrchestrator(id, client, registry.New(), n, logger)
}

func newOrchestrator(id session.Identity, client usecase.Provisioner, reg *registry.Registry, n usecase.Notifier, logger *slog.Logger) (*usecase.Orchestrator, error) {
	return usecase.NewOrchestrator(id, client, conversation.New(), reg, n, logger)
}

func printConversation(w io.Writer, turns []domain.ConversationTurn) {
	for _, t := range turns {
		who := "Юра"
		if t.Role == domain.RoleUser {
			who = "Вы"
		}
		fmt.Fprintf(w, "%s: %s\n", who, t.Text)
	}
}

func printProjects(w io.Writer, projects []domain.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "У вас пока нет сайтов.")
		return
	}
	for _, p := range projects {
		line := fmt.Sprintf("#%d  %-30s  %s", p.ID, p.Name, p.Status)
		if p.URL != "" {
			line += "  " + p.URL
		}
		fmt.Fprintln(w, line)
	}
}
