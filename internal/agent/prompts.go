package agent

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"text/template"
)

//go:embed prompts/*.gotmpl
var promptFS embed.FS

var (
	commonTmpl = mustPrompt("common")
	inputTmpl  = mustPrompt("input")
	roleTmpls  = map[string]*template.Template{
		InteractionPlanning: mustPrompt("planning"),
		InteractionUpdate:   mustPrompt("update"),
		InteractionCreation: mustPrompt("creation"),
	}
)

func mustPrompt(name string) *template.Template {
	return template.Must(template.ParseFS(promptFS, "prompts/"+name+".gotmpl"))
}

type variable struct {
	Name  string
	Value string
}

// promptData is what both built-in and configured templates are executed with.
type promptData struct {
	Interaction string
	Schema      string
	Common      string
	Vars        map[string]string
	Variables   []variable
}

func newPromptData(inv Invocation) (promptData, error) {
	names := make([]string, 0, len(inv.Variables))
	for name := range inv.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	vars := make([]variable, 0, len(names))
	for _, name := range names {
		vars = append(vars, variable{Name: name, Value: inv.Variables[name]})
	}

	data := promptData{
		Interaction: inv.InteractionType,
		Schema:      inv.OutputSchema,
		Vars:        inv.Variables,
		Variables:   vars,
	}
	common, err := execute(commonTmpl, data)
	if err != nil {
		return promptData{}, err
	}
	data.Common = common
	return data, nil
}

// renderInstructions returns the system prompt. A configured system prompt
// is itself a template; otherwise the built-in prompt for the interaction
// type is used, falling back to the common preamble.
func renderInstructions(configured string, data promptData) (string, error) {
	if configured != "" {
		t, err := template.New("system_prompt").Parse(configured)
		if err != nil {
			return "", fmt.Errorf("parse system prompt: %w", err)
		}
		return execute(t, data)
	}
	if t, ok := roleTmpls[data.Interaction]; ok {
		return execute(t, data)
	}
	return data.Common, nil
}

func renderInput(configured string, data promptData) (string, error) {
	if configured != "" {
		t, err := template.New("template").Option("missingkey=error").Parse(configured)
		if err != nil {
			return "", fmt.Errorf("parse input template: %w", err)
		}
		return execute(t, data)
	}
	return execute(inputTmpl, data)
}

func execute(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
