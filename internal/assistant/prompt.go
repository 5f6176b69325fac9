package assistant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt instructs the model to triage with structured questions
const DefaultSystemPrompt = "You are MediChat, a medical assistant. " +
	"Ask structured follow-up questions (return JSON with \"question\" and \"options\") " +
	"until you can propose a diagnosis."

// PromptSpec is the YAML prompt file layout
type PromptSpec struct {
	System   string `yaml:"system"`
	Examples []struct {
		User      string `yaml:"user"`
		Assistant string `yaml:"assistant"`
	} `yaml:"examples"`
}

// LoadPrompt reads a prompt file and returns the system prompt. An empty
// path yields DefaultSystemPrompt.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return "", fmt.Errorf("failed to parse prompt file: %w", err)
	}
	return spec.render(), nil
}

func (p PromptSpec) render() string {
	system := strings.TrimSpace(p.System)
	if system == "" {
		system = DefaultSystemPrompt
	}
	if len(p.Examples) == 0 {
		return system
	}

	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\n\nExamples:")
	for _, ex := range p.Examples {
		sb.WriteString("\nuser: ")
		sb.WriteString(strings.TrimSpace(ex.User))
		sb.WriteString("\nassistant: ")
		sb.WriteString(strings.TrimSpace(ex.Assistant))
	}
	return sb.String()
}
