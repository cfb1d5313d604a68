package manifest

import (
	"os"
	"strings"
	"text/template"
	"time"
)

// now and hostname feed the built-in definitions.
var (
	now      = time.Now
	hostname = os.Hostname
)

// templateEngine handles text template rendering with variable substitution.
type templateEngine struct {
	defines map[string]string
	funcs   template.FuncMap
}

// builtins are the definitions every job file can use: Date (YYYY-MM-DD)
// and Hostname.
func builtins() map[string]string {
	d := map[string]string{
		"Date": now().Format(time.DateOnly),
	}
	if h, err := hostname(); err == nil {
		d["Hostname"] = h
	}
	return d
}

// newTemplateEngine creates an engine knowing the built-ins plus the provided
// definitions. Definitions may themselves use the built-ins, and override them.
func newTemplateEngine(defines map[string]string) (*templateEngine, error) {
	base := &templateEngine{
		defines: builtins(),
		funcs: template.FuncMap{
			"lower": strings.ToLower,
			"upper": strings.ToUpper,
		},
	}
	locals := make(map[string]string, len(defines))
	for k, v := range defines {
		rendered, err := base.render(k, v)
		if err != nil {
			return nil, err
		}
		locals[k] = rendered
	}
	return base.sub(locals), nil
}

// sub creates a new templateEngine that inherits the parent's definitions
// and adds (or overrides) them with the provided local definitions.
func (e *templateEngine) sub(locals map[string]string) *templateEngine {
	newDefines := make(map[string]string)
	for k, v := range e.defines {
		newDefines[k] = v
	}
	for k, v := range locals {
		newDefines[k] = v
	}
	return &templateEngine{
		defines: newDefines,
		funcs:   e.funcs,
	}
}

// render executes the provided text as a template using the engine's definitions.
// If the text does not contain "{{", it is returned as-is.
func (e *templateEngine) render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Funcs(e.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := t.Execute(&buf, e.defines); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderAll renders every string pointed to, stopping at the first error.
func (e *templateEngine) renderAll(fields map[string]*string) error {
	for name, field := range fields {
		out, err := e.render(name, *field)
		if err != nil {
			return err
		}
		*field = out
	}
	return nil
}
