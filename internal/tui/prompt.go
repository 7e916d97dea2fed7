package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hrexport/internal/auth"
)

// ErrPromptCancelled is returned when the user leaves the credential prompt
var ErrPromptCancelled = errors.New("sign-in cancelled")

const (
	fieldEmail = iota
	fieldPassword
)

// CredentialsModel asks for the Garmin Connect email and password
type CredentialsModel struct {
	inputs    []textinput.Model
	focus     int
	submitted bool
	cancelled bool
	hint      string
}

// NewCredentialsModel creates the prompt, pre-filling email if known
func NewCredentialsModel(email string) CredentialsModel {
	emailInput := textinput.New()
	emailInput.Placeholder = "you@example.com"
	emailInput.Prompt = "Email    › "
	emailInput.CharLimit = 254
	emailInput.Width = 40
	emailInput.SetValue(email)

	passwordInput := textinput.New()
	passwordInput.Placeholder = "password"
	passwordInput.Prompt = "Password › "
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.Width = 40

	m := CredentialsModel{inputs: []textinput.Model{emailInput, passwordInput}}
	if email != "" {
		m.focus = fieldPassword
	}
	m.applyFocus()
	return m
}

// Init initializes the prompt
func (m CredentialsModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m CredentialsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "tab", "down":
			m.focus = (m.focus + 1) % len(m.inputs)
			m.applyFocus()
			return m, nil
		case "shift+tab", "up":
			m.focus = (m.focus + len(m.inputs) - 1) % len(m.inputs)
			m.applyFocus()
			return m, nil
		case "enter":
			creds := m.Credentials()
			switch {
			case creds.Email == "":
				m.focus = fieldEmail
				m.hint = "Email is required"
			case creds.Password == "" && m.focus == fieldEmail:
				m.focus = fieldPassword
				m.hint = ""
			case creds.Password == "":
				m.hint = "Password is required"
			default:
				m.submitted = true
				return m, tea.Quit
			}
			m.applyFocus()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *CredentialsModel) applyFocus() {
	for i := range m.inputs {
		if i == m.focus {
			m.inputs[i].Focus()
			m.inputs[i].PromptStyle = focusedPromptStyle
		} else {
			m.inputs[i].Blur()
			m.inputs[i].PromptStyle = blurredPromptStyle
		}
	}
}

// View renders the prompt
func (m CredentialsModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	sections := []string{
		cardTitleStyle.Render("Sign in to Garmin Connect"),
		m.inputs[fieldEmail].View(),
		m.inputs[fieldPassword].View(),
	}
	if m.hint != "" {
		sections = append(sections, warningStyle.Render(m.hint))
	}
	sections = append(sections, statusStyle.Render(strings.Join([]string{
		RenderKeyHelp("tab", "next field"),
		RenderKeyHelp("enter", "sign in"),
		RenderKeyHelp("esc", "cancel"),
	}, "  ")))

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// Credentials returns what has been typed so far
func (m CredentialsModel) Credentials() auth.Credentials {
	return auth.Credentials{
		Email:    strings.TrimSpace(m.inputs[fieldEmail].Value()),
		Password: m.inputs[fieldPassword].Value(),
	}
}

// Submitted reports whether the user confirmed both fields
func (m CredentialsModel) Submitted() bool {
	return m.submitted
}

// PromptCredentials runs the credential prompt on the given terminal streams
func PromptCredentials(in io.Reader, out io.Writer, email string) (auth.Credentials, error) {
	p := tea.NewProgram(NewCredentialsModel(email), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("running prompt: %w", err)
	}

	m, ok := final.(CredentialsModel)
	if !ok || !m.Submitted() {
		return auth.Credentials{}, ErrPromptCancelled
	}
	return m.Credentials(), nil
}
