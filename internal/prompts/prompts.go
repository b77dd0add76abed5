// Package prompts holds the embedded, localized prompt templates sent to the model.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/finassist/finassist/internal/finance"
)

//go:embed data/*.json
var files embed.FS

// Template keys.
const (
	ChatInstructions       = "chat.instructions"
	CategorizeInstructions = "categorize.instructions"
	CategorizeMessage      = "categorize.message"
)

const defaultLang = "en"

// Renderer renders prompts by key.
type Renderer interface {
	// Render returns the prompt for key rendered with data.
	Render(key string, data any) (string, error)
}

// Bundle holds parsed templates for a selected language.
type Bundle struct {
	lang      string
	templates map[string]*template.Template
}

// Load loads templates for lang, falling back to English for unknown languages.
func Load(lang string) (*Bundle, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = defaultLang
	}
	raw, err := files.ReadFile(fmt.Sprintf("data/%s.json", lang))
	if err != nil {
		lang = defaultLang
		raw, err = files.ReadFile(fmt.Sprintf("data/%s.json", lang))
		if err != nil {
			return nil, fmt.Errorf("read templates: %w", err)
		}
	}

	var messages map[string]string
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	parsed := make(map[string]*template.Template, len(messages))
	for key, value := range messages {
		tmpl, err := template.New(key).Option("missingkey=error").Parse(value)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", key, err)
		}
		parsed[key] = tmpl
	}
	return &Bundle{lang: lang, templates: parsed}, nil
}

// Lang returns the loaded language.
func (b *Bundle) Lang() string {
	return b.lang
}

// Render renders a prompt by key with the supplied data.
func (b *Bundle) Render(key string, data any) (string, error) {
	if b == nil {
		return "", fmt.Errorf("templates bundle is nil")
	}
	tmpl, ok := b.templates[key]
	if !ok {
		return "", fmt.Errorf("template not found: %s", key)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", key, err)
	}
	return out.String(), nil
}

// ChatData feeds chat.instructions.
type ChatData struct {
	FamilyName string
	Currency   string
	DateFormat string
	Today      string
}

// NewChatData derives template data from the family preferences.
func NewChatData(fam finance.Family) ChatData {
	name := fam.Name
	if name == "" {
		name = fam.ID
	}
	currency := fam.Currency
	if currency == "" {
		currency = "INR"
	}
	return ChatData{
		FamilyName: name,
		Currency:   currency,
		DateFormat: humanLayout(fam.DateFormat),
		Today:      fam.FormatDate(fam.Now()),
	}
}

// ChatInstructions returns a function rendering chat.instructions per family.
// Rendering failures fall back to an empty prompt.
func (b *Bundle) ChatInstructions() func(finance.Family) string {
	return func(fam finance.Family) string {
		out, err := b.Render(ChatInstructions, NewChatData(fam))
		if err != nil {
			return ""
		}
		return out
	}
}

// humanLayout turns a Go time layout into a pattern the model understands.
func humanLayout(layout string) string {
	if layout == "" {
		layout = finance.DefaultDateFormat
	}
	return strings.NewReplacer("2006", "YYYY", "01", "MM", "02", "DD", "Jan", "MMM").Replace(layout)
}
