package narrator

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts holds the parsed prompt templates.
type Prompts struct {
	System          string
	initialEvents   *template.Template
	startGame       *template.Template
	advanceTimeline *template.Template
}

type promptFile struct {
	System          string `yaml:"system"`
	InitialEvents   string `yaml:"initial_events"`
	StartGame       string `yaml:"start_game"`
	AdvanceTimeline string `yaml:"advance_timeline"`
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPrompts)
}

// LoadPrompts reads a prompt file from disk. An empty path returns the
// embedded set.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return ParsePrompts(data)
}

// ParsePrompts parses a YAML prompt file. All four keys are required.
func ParsePrompts(data []byte) (*Prompts, error) {
	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	missing := []string{}
	for key, val := range map[string]string{
		"system":           pf.System,
		"initial_events":   pf.InitialEvents,
		"start_game":       pf.StartGame,
		"advance_timeline": pf.AdvanceTimeline,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("prompts missing keys: %s", strings.Join(missing, ", "))
	}

	p := &Prompts{System: strings.TrimSpace(pf.System)}
	var err error
	if p.initialEvents, err = template.New("initial_events").Parse(pf.InitialEvents); err != nil {
		return nil, fmt.Errorf("parse initial_events: %w", err)
	}
	if p.startGame, err = template.New("start_game").Parse(pf.StartGame); err != nil {
		return nil, fmt.Errorf("parse start_game: %w", err)
	}
	if p.advanceTimeline, err = template.New("advance_timeline").Parse(pf.AdvanceTimeline); err != nil {
		return nil, fmt.Errorf("parse advance_timeline: %w", err)
	}
	return p, nil
}

type promptData struct {
	Year    string
	Event   string
	Choice  string
	History string
	Count   int
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
