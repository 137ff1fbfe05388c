package wizards

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runeMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func send(t *testing.T, w InitWizard, msgs ...tea.Msg) InitWizard {
	t.Helper()
	var model tea.Model = w
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	return model.(InitWizard)
}

func TestInitWizard_SelectsBasicJSONL(t *testing.T) {
	w := NewInitWizard("./proj", DefaultTemplates())

	// enter on first template, enter on first sink (jsonl)
	w = send(t, w, keyMsg(tea.KeyEnter), keyMsg(tea.KeyEnter))

	result := w.Result()
	if result.Cancelled {
		t.Fatal("Expected wizard not to be cancelled")
	}
	if result.Template != "basic" {
		t.Errorf("Expected template 'basic', got %q", result.Template)
	}
	if result.Sink != dtaforge.SinkJSONL {
		t.Errorf("Expected sink 'jsonl', got %q", result.Sink)
	}
	if result.TargetDir != "./proj" {
		t.Errorf("Expected target dir './proj', got %q", result.TargetDir)
	}
}

func TestInitWizard_NavigatesToDemo(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	w = send(t, w, keyMsg(tea.KeyDown), keyMsg(tea.KeyEnter), keyMsg(tea.KeyEnter))

	if got := w.Result().Template; got != "demo" {
		t.Errorf("Expected template 'demo', got %q", got)
	}
}

func TestInitWizard_PostgresAsksForSchema(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	// basic template, down to postgres sink
	w = send(t, w, keyMsg(tea.KeyEnter), keyMsg(tea.KeyDown), keyMsg(tea.KeyEnter))

	if w.step != initStepSchema {
		t.Fatalf("Expected schema step, got %d", w.step)
	}
	if !strings.Contains(w.View(), "schema") {
		t.Errorf("Expected schema prompt in view, got:\n%s", w.View())
	}

	// type a schema name and confirm
	w = send(t, w, runeMsg('w'), runeMsg('3'), keyMsg(tea.KeyEnter))

	result := w.Result()
	if result.Sink != dtaforge.SinkPostgres {
		t.Errorf("Expected sink 'postgres', got %q", result.Sink)
	}
	if result.Schema != "w3" {
		t.Errorf("Expected schema 'w3', got %q", result.Schema)
	}
}

func TestInitWizard_EmptySchemaDefaults(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	w = send(t, w, keyMsg(tea.KeyEnter), keyMsg(tea.KeyDown), keyMsg(tea.KeyEnter), keyMsg(tea.KeyEnter))

	if got := w.Result().Schema; got != "dtaforge" {
		t.Errorf("Expected default schema 'dtaforge', got %q", got)
	}
}

func TestInitWizard_QuitCancels(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	w = send(t, w, runeMsg('q'))

	if !w.Result().Cancelled {
		t.Error("Expected q to cancel the wizard")
	}
}

func TestInitWizard_CtrlCCancelsDuringSchemaInput(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	w = send(t, w, keyMsg(tea.KeyEnter), keyMsg(tea.KeyDown), keyMsg(tea.KeyEnter), keyMsg(tea.KeyCtrlC))

	if !w.Result().Cancelled {
		t.Error("Expected ctrl+c to cancel during schema input")
	}
}

func TestInitWizard_EscGoesBack(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	w = send(t, w, keyMsg(tea.KeyEnter))
	if w.step != initStepSink {
		t.Fatalf("Expected sink step, got %d", w.step)
	}

	w = send(t, w, keyMsg(tea.KeyEsc))
	if w.step != initStepTemplate {
		t.Errorf("Expected back at template step, got %d", w.step)
	}
}

func TestInitWizard_ViewListsTemplates(t *testing.T) {
	w := NewInitWizard(".", DefaultTemplates())

	view := w.View()
	for _, tmpl := range DefaultTemplates() {
		if !strings.Contains(view, tmpl.Name) {
			t.Errorf("Expected view to list template %q, got:\n%s", tmpl.Name, view)
		}
	}
}
