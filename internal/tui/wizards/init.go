// Package wizards holds the interactive bubbletea flows used by the
// CLI when a human is at the terminal.
package wizards

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dstolpe/dtaforge/internal/tui"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// TemplateInfo holds template metadata for display.
type TemplateInfo struct {
	Name        string
	Description string
}

// DefaultTemplates returns the available template information.
func DefaultTemplates() []TemplateInfo {
	return []TemplateInfo{
		{Name: "basic", Description: "Minimal two-column starter"},
		{Name: "demo", Description: "Survey sample with missing ranges, labels, and date columns"},
	}
}

// SinkInfo holds sink metadata for display.
type SinkInfo struct {
	Name        string
	Description string
}

// DefaultSinks returns the selectable sinks.
func DefaultSinks() []SinkInfo {
	return []SinkInfo{
		{Name: dtaforge.SinkJSONL, Description: "Newline-delimited JSON to stdout or a file"},
		{Name: dtaforge.SinkPostgres, Description: "Long-format tables in a PostgreSQL schema"},
	}
}

// InitResult holds the result of the init wizard.
type InitResult struct {
	Cancelled bool
	TargetDir string
	Template  string
	Sink      string
	Schema    string
}

// InitWizard guides users through project initialization: template,
// then sink, then (for postgres) the target schema name.
type InitWizard struct {
	step initStep

	templates   []TemplateInfo
	templateIdx int

	sinks   []SinkInfo
	sinkIdx int

	schemaInput textinput.Model

	targetDir string
	result    InitResult

	width  int
	height int

	keys tui.KeyMap
}

type initStep int

const (
	initStepTemplate initStep = iota
	initStepSink
	initStepSchema
	initStepComplete
)

// NewInitWizard creates a new init wizard.
func NewInitWizard(targetDir string, templates []TemplateInfo) InitWizard {
	if targetDir == "" {
		targetDir = "."
	}

	schemaInput := textinput.New()
	schemaInput.Placeholder = "dtaforge"
	schemaInput.CharLimit = 63
	schemaInput.Width = 32

	return InitWizard{
		step:        initStepTemplate,
		targetDir:   targetDir,
		templates:   templates,
		sinks:       DefaultSinks(),
		schemaInput: schemaInput,
		width:       80,
		height:      24,
		keys:        tui.DefaultKeyMap(),
	}
}

// Init implements tea.Model.
func (w InitWizard) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (w InitWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		return w, nil

	case tea.KeyMsg:
		// The schema step needs free typing, so only ctrl+c quits there.
		if w.step != initStepSchema && key.Matches(msg, w.keys.Quit) {
			w.result.Cancelled = true
			return w, tea.Quit
		}
		if msg.Type == tea.KeyCtrlC {
			w.result.Cancelled = true
			return w, tea.Quit
		}

		switch w.step {
		case initStepTemplate:
			return w.updateTemplate(msg)
		case initStepSink:
			return w.updateSink(msg)
		case initStepSchema:
			return w.updateSchema(msg)
		case initStepComplete:
			return w.updateComplete(msg)
		}
	}

	return w, nil
}

func (w InitWizard) updateTemplate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, w.keys.Up):
		if w.templateIdx > 0 {
			w.templateIdx--
		}
	case key.Matches(msg, w.keys.Down):
		if w.templateIdx < len(w.templates)-1 {
			w.templateIdx++
		}
	case key.Matches(msg, w.keys.Select):
		w.result.Template = w.templates[w.templateIdx].Name
		w.step = initStepSink
	case key.Matches(msg, w.keys.Back):
		w.result.Cancelled = true
		return w, tea.Quit
	}
	return w, nil
}

func (w InitWizard) updateSink(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, w.keys.Up):
		if w.sinkIdx > 0 {
			w.sinkIdx--
		}
	case key.Matches(msg, w.keys.Down):
		if w.sinkIdx < len(w.sinks)-1 {
			w.sinkIdx++
		}
	case key.Matches(msg, w.keys.Select):
		w.result.Sink = w.sinks[w.sinkIdx].Name
		if w.result.Sink == dtaforge.SinkPostgres {
			w.step = initStepSchema
			w.schemaInput.Focus()
			return w, textinput.Blink
		}
		w.result.TargetDir = w.targetDir
		w.step = initStepComplete
	case key.Matches(msg, w.keys.Back):
		w.step = initStepTemplate
	}
	return w, nil
}

func (w InitWizard) updateSchema(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, w.keys.Select):
		schema := strings.TrimSpace(w.schemaInput.Value())
		if schema == "" {
			schema = "dtaforge"
		}
		w.result.Schema = schema
		w.result.TargetDir = w.targetDir
		w.step = initStepComplete
		return w, nil
	case key.Matches(msg, w.keys.Back):
		w.step = initStepSink
		w.schemaInput.Blur()
		return w, nil
	}

	var cmd tea.Cmd
	w.schemaInput, cmd = w.schemaInput.Update(msg)
	return w, cmd
}

func (w InitWizard) updateComplete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, w.keys.Select):
		return w, tea.Quit
	case key.Matches(msg, w.keys.Back):
		w.result.Cancelled = true
		return w, tea.Quit
	}
	return w, nil
}

// View implements tea.Model.
func (w InitWizard) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("dtaforge init - Project Setup"))
	b.WriteString("\n")

	switch w.step {
	case initStepTemplate:
		b.WriteString(w.viewChoices("Select a template", templateChoices(w.templates), w.templateIdx))
	case initStepSink:
		b.WriteString(w.viewChoices("Select an output sink", sinkChoices(w.sinks), w.sinkIdx))
	case initStepSchema:
		b.WriteString(w.viewSchema())
	case initStepComplete:
		b.WriteString(w.viewComplete())
	}

	return b.String()
}

type choice struct {
	name string
	desc string
}

func templateChoices(templates []TemplateInfo) []choice {
	choices := make([]choice, len(templates))
	for i, t := range templates {
		choices[i] = choice{name: t.Name, desc: t.Description}
	}
	return choices
}

func sinkChoices(sinks []SinkInfo) []choice {
	choices := make([]choice, len(sinks))
	for i, s := range sinks {
		choices[i] = choice{name: s.Name, desc: s.Description}
	}
	return choices
}

func (w InitWizard) viewChoices(subtitle string, choices []choice, selected int) string {
	var b strings.Builder

	b.WriteString(tui.SubtitleStyle.Render(subtitle))
	b.WriteString("\n\n")

	for i, c := range choices {
		cursor := "  "
		style := tui.UnselectedStyle
		symbol := tui.SymbolUnselected

		if i == selected {
			cursor = ""
			style = tui.SelectedStyle
			symbol = tui.SymbolSelected
		}

		b.WriteString(cursor)
		b.WriteString(style.Render(symbol + " " + c.name))
		b.WriteString("\n")
		b.WriteString(tui.DescriptionStyle.Render(c.desc))
		b.WriteString("\n")
	}

	b.WriteString(tui.HelpStyle.Render("\n" + w.keys.HelpText()))

	return b.String()
}

func (w InitWizard) viewSchema() string {
	var b strings.Builder

	b.WriteString(tui.SubtitleStyle.Render("PostgreSQL schema for the converted tables"))
	b.WriteString("\n\n")
	b.WriteString(w.schemaInput.View())
	b.WriteString("\n")
	b.WriteString(tui.HelpStyle.Render("\nenter continue • esc back • ctrl+c quit"))

	return b.String()
}

func (w InitWizard) viewComplete() string {
	var b strings.Builder

	b.WriteString(tui.SuccessStyle.Render(tui.SymbolCheck + " Ready to create project"))
	b.WriteString("\n\n")

	absPath, _ := filepath.Abs(w.targetDir)
	b.WriteString(fmt.Sprintf("Directory: %s\n", absPath))
	b.WriteString(fmt.Sprintf("Template:  %s\n", w.result.Template))
	b.WriteString(fmt.Sprintf("Sink:      %s\n", w.result.Sink))
	if w.result.Schema != "" {
		b.WriteString(fmt.Sprintf("Schema:    %s\n", w.result.Schema))
	}

	b.WriteString(tui.HelpStyle.Render("\nenter create project • esc cancel"))

	return b.String()
}

// Result returns the wizard result.
func (w InitWizard) Result() InitResult {
	return w.result
}

// RunInitWizard executes the init wizard.
func RunInitWizard(targetDir string) (InitResult, error) {
	templates := DefaultTemplates()
	if len(templates) == 0 {
		return InitResult{Cancelled: true}, fmt.Errorf("no templates available")
	}

	wizard := NewInitWizard(targetDir, templates)
	p := tea.NewProgram(wizard, tea.WithAltScreen())

	model, err := p.Run()
	if err != nil {
		return InitResult{Cancelled: true}, err
	}

	return model.(InitWizard).Result(), nil
}
