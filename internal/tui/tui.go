// Package tui is a single-screen terminal UI for todos.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"typed-todo/internal/client"
	"typed-todo/internal/models"
)

// Run starts the UI over api and blocks until the user quits.
func Run(ctx context.Context, api client.API) error {
	p := tea.NewProgram(New(ctx, api), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

type inputMode int

const (
	modeBrowse inputMode = iota
	modeAdd
	modeEditTitle
	modeEditDesc
)

type loadedMsg struct {
	todos []models.Todo
	err   error
}

// changedMsg follows any write; the list is reloaded after it.
type changedMsg struct {
	err error
}

// Model is the bubbletea model for the todo screen.
type Model struct {
	ctx    context.Context
	api    client.API
	todos  []models.Todo
	cursor int
	mode   inputMode
	target int64 // todo being edited, fixed when the input opens
	input  textinput.Model
	help   help.Model
	err    error
}

func New(ctx context.Context, api client.API) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200
	return Model{
		ctx:   ctx,
		api:   api,
		input: ti,
		help:  help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		todos, err := m.api.List(m.ctx)
		return loadedMsg{todos: todos, err: err}
	}
}

func (m Model) write(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return changedMsg{err: fn(m.ctx)}
	}
}

func (m Model) selected() (models.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(m.todos) {
		return models.Todo{}, false
	}
	return m.todos[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		// A successful reload keeps the error of the write that caused it.
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.todos = msg.todos
		}
		if m.cursor >= len(m.todos) {
			m.cursor = max(len(m.todos)-1, 0)
		}
		return m, nil
	case changedMsg:
		m.err = msg.err
		return m, m.load()
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.todos)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Refresh):
		return m, m.load()
	case key.Matches(msg, keys.Add):
		return m.startInput(modeAdd, "", "New todo title...")
	case key.Matches(msg, keys.Edit):
		if t, ok := m.selected(); ok {
			return m.startInput(modeEditTitle, t.Title, "Todo title...")
		}
	case key.Matches(msg, keys.EditDesc):
		if t, ok := m.selected(); ok {
			desc := ""
			if t.Description != nil {
				desc = *t.Description
			}
			return m.startInput(modeEditDesc, desc, "Description...")
		}
	case key.Matches(msg, keys.ClearDesc):
		if t, ok := m.selected(); ok {
			return m, m.update(models.UpdateTodoInput{ID: t.ID, Description: models.Null[string]()})
		}
	case key.Matches(msg, keys.Toggle):
		if t, ok := m.selected(); ok {
			return m, m.update(models.UpdateTodoInput{ID: t.ID, Completed: models.Set(!t.Completed)})
		}
	case key.Matches(msg, keys.Delete):
		if t, ok := m.selected(); ok {
			return m, m.write(func(ctx context.Context) error {
				_, err := m.api.Delete(ctx, t.ID)
				return err
			})
		}
	}
	return m, nil
}

func (m Model) startInput(mode inputMode, value, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.target = 0
	if t, ok := m.selected(); ok && mode != modeAdd {
		m.target = t.ID
	}
	m.err = nil
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Placeholder = placeholder
	return m, m.input.Focus()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = modeBrowse
		m.input.Blur()
		m.input.SetValue("")
		return m, m.submit(mode, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit turns the finished input into a write. An empty description clears
// it; an empty title is sent as is and rejected by validation.
func (m Model) submit(mode inputMode, value string) tea.Cmd {
	switch mode {
	case modeAdd:
		return m.write(func(ctx context.Context) error {
			_, err := m.api.Create(ctx, models.CreateTodoInput{Title: value})
			return err
		})
	case modeEditTitle:
		return m.update(models.UpdateTodoInput{ID: m.target, Title: models.Set(value)})
	case modeEditDesc:
		desc := models.Set(value)
		if value == "" {
			desc = models.Null[string]()
		}
		return m.update(models.UpdateTodoInput{ID: m.target, Description: desc})
	}
	return nil
}

func (m Model) update(in models.UpdateTodoInput) tea.Cmd {
	return m.write(func(ctx context.Context) error {
		todo, err := m.api.Update(ctx, in)
		if err == nil && todo == nil {
			return fmt.Errorf("todo %d no longer exists", in.ID)
		}
		return err
	})
}

func (m Model) View() string {
	var b strings.Builder

	done := 0
	for _, t := range m.todos {
		if t.Completed {
			done++
		}
	}
	header := fmt.Sprintf("%s   %s %d  %s %d", titleStyle.Render("Todos"),
		successStyle.Render("✔"), done, mutedStyle.Render("Total"), len(m.todos))
	if mm, ok := m.api.(interface{ Mode() string }); ok && mm.Mode() == client.ModeLocal {
		header += "  " + localStyle.Render("[offline: local demo data]")
	}
	b.WriteString(header + "\n\n")

	if len(m.todos) == 0 {
		b.WriteString(mutedStyle.Render("No todos yet. Press a to add one.") + "\n")
	}
	for i, t := range m.todos {
		prefix := "  "
		if i == m.cursor {
			prefix = selectedStyle.Render("> ")
		}
		box, title := mutedStyle.Render(boxOpen), t.Title
		if t.Completed {
			box, title = successStyle.Render(boxChecked), doneStyle.Render(t.Title)
		}
		line := fmt.Sprintf("%s%s %s", prefix, box, title)
		if t.Description != nil {
			line += "  " + mutedStyle.Render(*t.Description)
		}
		b.WriteString(line + "\n")
	}

	if m.mode != modeBrowse {
		label := map[inputMode]string{
			modeAdd:       "Add todo",
			modeEditTitle: "Edit title",
			modeEditDesc:  "Edit description (empty clears)",
		}[m.mode]
		b.WriteString("\n" + panelStyle.Render(label+"\n"+m.input.View()) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + m.help.View(keys))
	return panelStyle.Render(b.String())
}
