// Package tui is the interactive terminal client: an access-code screen
// followed by the chat, sites and templates tabs.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"site-creator/internal/domain"
	"site-creator/internal/session"
	"site-creator/internal/usecase"
)

const DefaultToastTTL = 4 * time.Second

type Authenticator interface {
	Authenticate(code string) (session.Identity, error)
}

// Workspace is the per-session surface the UI drives. *usecase.Orchestrator
// satisfies it.
type Workspace interface {
	Submit(ctx context.Context, text string) usecase.Outcome
	SubmitFromTemplate(ctx context.Context, name string) usecase.Outcome
	Refresh(ctx context.Context) error
	Busy() bool
	Conversation() []domain.ConversationTurn
	Projects() []domain.Project
	HasProjects() bool
	End()
}

// OpenFunc builds the workspace for a freshly issued session.
type OpenFunc func(id session.Identity) (Workspace, error)

type Options struct {
	Context       context.Context
	Gate          Authenticator
	Open          OpenFunc
	Notifications <-chan domain.Notification
	Logger        *slog.Logger
	ToastTTL      time.Duration
}

type screen int

const (
	screenGate screen = iota
	screenMain
)

type tab int

const (
	tabChat tab = iota
	tabSites
	tabTemplates
	tabCount
)

var tabTitles = [tabCount]string{"Конструктор", "Мои сайты", "Шаблоны"}

type (
	outcomeMsg      struct{ outcome usecase.Outcome }
	refreshedMsg    struct{ err error }
	notificationMsg struct{ n domain.Notification }
	toastExpiredMsg struct{ seq int }
)

// chrome is the number of rows taken by the header, input and footer around
// the conversation viewport.
const chrome = 8

type Model struct {
	ctx      context.Context
	gate     Authenticator
	open     OpenFunc
	notes    <-chan domain.Notification
	logger   *slog.Logger
	toastTTL time.Duration

	screen  screen
	tab     tab
	ws      Workspace
	pending bool
	gateErr string

	code     textinput.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	template int

	toast    *domain.Notification
	toastSeq int

	width  int
	height int
	styles styles
}

func New(opts Options) (Model, error) {
	if opts.Gate == nil {
		return Model{}, errors.New("tui: gate must not be nil")
	}
	if opts.Open == nil {
		return Model{}, errors.New("tui: open func must not be nil")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = DefaultToastTTL
	}

	code := textinput.New()
	code.Placeholder = "Введите код доступа"
	code.EchoMode = textinput.EchoPassword
	code.EchoCharacter = '•'
	code.Focus()

	input := textinput.New()
	input.Placeholder = "Например: Сделай сайт для кофейни с меню и контактами"
	input.CharLimit = 500

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctx:      opts.Context,
		gate:     opts.Gate,
		open:     opts.Open,
		notes:    opts.Notifications,
		logger:   opts.Logger,
		toastTTL: opts.ToastTTL,
		code:     code,
		input:    input,
		viewport: viewport.New(80, 12),
		spinner:  sp,
		styles:   defaultStyles(),
	}, nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForNotification(m.notes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.syncViewport()
		return m, nil

	case notificationMsg:
		n := msg.n
		m.toast = &n
		m.toastSeq++
		seq := m.toastSeq
		expire := tea.Tick(m.toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
		return m, tea.Batch(waitForNotification(m.notes), expire)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case outcomeMsg:
		m.pending = false
		m.logger.Info("submission finished", "status", msg.outcome.Status)
		m.syncViewport()
		return m, nil

	case refreshedMsg:
		m.pending = false
		if msg.err != nil {
			m.logger.Warn("project list refresh failed", "err", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.syncViewport()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	if m.screen == screenGate {
		m.code, cmd = m.code.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.ws != nil {
			m.ws.End()
		}
		return m, tea.Quit
	case "esc":
		m.toast = nil
		return m, nil
	}

	if m.screen == screenGate {
		return m.handleGateKey(msg)
	}

	switch msg.String() {
	case "tab":
		m.switchTab((m.tab + 1) % tabCount)
		return m, nil
	case "shift+tab":
		m.switchTab((m.tab + tabCount - 1) % tabCount)
		return m, nil
	}

	switch m.tab {
	case tabChat:
		return m.handleChatKey(msg)
	case tabSites:
		if msg.String() == "r" && !m.busy() {
			m.pending = true
			return m, tea.Batch(m.spinner.Tick, refreshCmd(m.ctx, m.ws))
		}
	case tabTemplates:
		return m.handleTemplateKey(msg)
	}
	return m, nil
}

func (m Model) handleGateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.code, cmd = m.code.Update(msg)
		return m, cmd
	}

	id, err := m.gate.Authenticate(m.code.Value())
	m.code.Reset()
	if err != nil {
		m.gateErr = "Неверный код. Проверьте код доступа и попробуйте снова."
		return m, nil
	}
	ws, err := m.open(id)
	if err != nil {
		m.logger.Error("failed to open workspace", "err", err)
		m.gateErr = err.Error()
		return m, nil
	}

	m.ws = ws
	m.gateErr = ""
	m.screen = screenMain
	m.code.Blur()
	m.switchTab(tabChat)
	m.pending = true
	return m, tea.Batch(textinput.Blink, m.spinner.Tick, refreshCmd(m.ctx, ws))
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	if msg.Type == tea.KeyEnter {
		// The draft stays in the input until the current request finishes.
		if m.busy() {
			return m, nil
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		m.pending = true
		return m, tea.Batch(m.spinner.Tick, submitCmd(m.ctx, m.ws, text))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleTemplateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := usecase.Templates()
	switch msg.String() {
	case "up", "k":
		if m.template > 0 {
			m.template--
		}
	case "down", "j":
		if m.template < len(list)-1 {
			m.template++
		}
	case "enter":
		if m.busy() {
			return m, nil
		}
		m.pending = true
		m.switchTab(tabChat)
		return m, tea.Batch(m.spinner.Tick, templateCmd(m.ctx, m.ws, list[m.template].Name))
	}
	return m, nil
}

func (m *Model) switchTab(t tab) {
	m.tab = t
	if t == tabChat {
		m.input.Focus()
		m.syncViewport()
	} else {
		m.input.Blur()
	}
}

func (m Model) busy() bool {
	return m.pending || (m.ws != nil && m.ws.Busy())
}

func (m *Model) syncViewport() {
	if m.ws == nil {
		return
	}
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func submitCmd(ctx context.Context, ws Workspace, text string) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: ws.Submit(ctx, text)}
	}
}

func templateCmd(ctx context.Context, ws Workspace, name string) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: ws.SubmitFromTemplate(ctx, name)}
	}
}

func refreshCmd(ctx context.Context, ws Workspace) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: ws.Refresh(ctx)}
	}
}

func waitForNotification(ch <-chan domain.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg{n: n}
	}
}
