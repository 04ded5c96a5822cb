package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is the replaceable text of the assistant.
type Template struct {
	Base               string
	WelcomeMessage     string
	SuggestedQuestions []string
}

func DefaultTemplate() Template {
	suggestions := make([]string, len(defaultSuggestions))
	copy(suggestions, defaultSuggestions)
	return Template{
		Base:               basePolicy,
		WelcomeMessage:     defaultWelcome,
		SuggestedQuestions: suggestions,
	}
}

type frontmatter struct {
	WelcomeMessage     string   `yaml:"welcome_message"`
	SuggestedQuestions []string `yaml:"suggested_questions"`
}

// LoadTemplateFile reads a markdown prompt file. The body replaces the
// base policy verbatim. Optional YAML frontmatter may set the welcome
// message and suggested questions:
//
//	---
//	welcome_message: Hello!
//	suggested_questions: ["Where's my order?"]
//	---
//	You are ...
func LoadTemplateFile(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt file: %w", err)
	}
	return ParseTemplate(string(data))
}

// ParseTemplate parses the LoadTemplateFile format from memory.
func ParseTemplate(content string) (Template, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return Template{Base: strings.TrimSpace(content)}, nil
	}

	lines := strings.Split(content, "\n")
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closing = i
			break
		}
	}
	if closing == -1 {
		return Template{}, fmt.Errorf("unclosed YAML frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:closing], "\n")), &fm); err != nil {
		return Template{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	return Template{
		Base:               strings.TrimSpace(strings.Join(lines[closing+1:], "\n")),
		WelcomeMessage:     fm.WelcomeMessage,
		SuggestedQuestions: fm.SuggestedQuestions,
	}, nil
}
