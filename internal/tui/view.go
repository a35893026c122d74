package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"site-creator/internal/domain"
	"site-creator/internal/usecase"
)

const (
	appTitle    = "ЮРА БЕСПЛАТНО"
	appSubtitle = "Создавай сайты через ИИ"
)

func (m Model) View() string {
	var body string
	if m.screen == screenGate {
		body = m.gateView()
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, m.tabsView(), "", m.tabView())
	}
	if t := m.toastView(); t != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", t)
	}
	return body + "\n"
}

func (m Model) gateView() string {
	lines := []string{
		m.styles.Title.Render("🚀 " + appTitle),
		m.styles.Subtitle.Render(appSubtitle),
		"",
		m.code.View(),
	}
	if m.gateErr != "" {
		lines = append(lines, m.styles.Error.Render(m.gateErr))
	}
	lines = append(lines, "", m.styles.Muted.Render("enter: войти · ctrl+c: выход"))
	return strings.Join(lines, "\n")
}

func (m Model) tabsView() string {
	parts := make([]string, 0, int(tabCount)+1)
	parts = append(parts, m.styles.Title.Render(appTitle)+"  ")
	for i, title := range tabTitles {
		if tab(i) == m.tab {
			parts = append(parts, m.styles.ActiveTab.Render(title))
		} else {
			parts = append(parts, m.styles.Tab.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) tabView() string {
	switch m.tab {
	case tabSites:
		return m.sitesView()
	case tabTemplates:
		return m.templatesView()
	default:
		return m.chatView()
	}
}

func (m Model) chatView() string {
	status := m.styles.Muted.Render("enter: отправить · tab: вкладки · ctrl+c: выход")
	if m.busy() {
		status = m.spinner.View() + " " + m.styles.Muted.Render("Создаю сайт…")
	}
	return strings.Join([]string{m.viewport.View(), m.input.View(), status}, "\n")
}

func (m Model) renderConversation() string {
	turns := m.ws.Conversation()
	if len(turns) == 0 {
		return m.styles.Muted.Render("Опишите, какой сайт вы хотите создать")
	}
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if turn.Role == domain.RoleUser {
			b.WriteString(m.styles.User.Render("Вы: "))
			b.WriteString(turn.Text)
		} else {
			b.WriteString(m.styles.Assistant.Render("Юра: " + turn.Text))
		}
	}
	return b.String()
}

func (m Model) sitesView() string {
	help := m.styles.Muted.Render("r: обновить · tab: вкладки")
	if m.ws == nil || !m.ws.HasProjects() {
		return strings.Join([]string{
			m.styles.Muted.Render("У вас пока нет сайтов. Опишите идею во вкладке «Конструктор»."),
			"",
			help,
		}, "\n")
	}
	var lines []string
	for _, p := range m.ws.Projects() {
		lines = append(lines, fmt.Sprintf("• %s  %s", p.Name, m.statusBadge(p)))
	}
	lines = append(lines, "", help)
	return strings.Join(lines, "\n")
}

func (m Model) statusBadge(p domain.Project) string {
	switch p.Status {
	case domain.StatusReady:
		return m.styles.Ready.Render("🟢 " + p.URL)
	case domain.StatusFailed:
		return m.styles.Failed.Render("🔴 Ошибка")
	default:
		return m.styles.Creating.Render("🟡 Создаётся")
	}
}

func (m Model) templatesView() string {
	var lines []string
	for i, t := range usecase.Templates() {
		if i == m.template {
			lines = append(lines, m.styles.Cursor.Render("> "+t.Name))
			lines = append(lines, "  "+m.styles.Muted.Render(t.Description))
			continue
		}
		lines = append(lines, "  "+t.Name)
	}
	lines = append(lines, "", m.styles.Muted.Render("↑/↓: выбрать · enter: создать"))
	return strings.Join(lines, "\n")
}

func (m Model) toastView() string {
	if m.toast == nil {
		return ""
	}
	text := m.toast.Title
	if m.toast.Description != "" {
		text += "\n" + m.toast.Description
	}
	if m.toast.Variant == domain.VariantDestructive {
		return m.styles.ToastDanger.Render(text)
	}
	return m.styles.Toast.Render(text)
}
