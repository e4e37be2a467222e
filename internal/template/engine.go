// Package template renders the per-branch fields of a child configuration.
//
// Template fields use Go text/template syntax with the sprig function
// library, e.g. "make test BRANCH={{ .Branch | quote }}". Strings that do
// not contain an action are returned unchanged.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// BranchData is the data available to a template field.
type BranchData struct {
	// Branch is the decoded branch name, e.g. "feature/x".
	Branch string
	// Name is the encoded child name, e.g. "feature%2Fx".
	Name string
	// Project is the name of the multibranch project.
	Project string
}

// Engine renders template fields. It caches parsed templates keyed by their
// source text.
type Engine struct {
	funcs template.FuncMap

	// Pattern to match variable references like {{ .Branch }}
	variablePattern *regexp.Regexp

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		funcs:           sprig.TxtFuncMap(),
		variablePattern: regexp.MustCompile(`\.([A-Z][a-zA-Z0-9_]*)`),
		cache:           make(map[string]*template.Template),
	}
}

var defaultEngine = New()

// Render renders s with the default engine.
func Render(s string, data BranchData) (string, error) {
	return defaultEngine.Render(s, data)
}

// Check parses s and renders it against placeholder data with the default
// engine.
func Check(s string) error {
	return defaultEngine.Check(s)
}

// Render renders s against data.
func (e *Engine) Render(s string, data BranchData) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	tmpl, err := e.parse(s)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", s, err)
	}
	return b.String(), nil
}

// Check validates that s parses and only references known variables.
func (e *Engine) Check(s string) error {
	if !strings.Contains(s, "{{") {
		return nil
	}
	if unknown := e.unknownVariables(s); len(unknown) > 0 {
		return fmt.Errorf("unknown template variables: %s", strings.Join(unknown, ", "))
	}
	_, err := e.Render(s, BranchData{Branch: "main", Name: "main", Project: "check"})
	return err
}

func (e *Engine) parse(s string) (*template.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.cache[s]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.New("field").Funcs(e.funcs).Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", s, err)
	}

	e.mu.Lock()
	e.cache[s] = tmpl
	e.mu.Unlock()
	return tmpl, nil
}

// unknownVariables returns the field references in s that BranchData does
// not provide.
func (e *Engine) unknownVariables(s string) []string {
	known := map[string]bool{"Branch": true, "Name": true, "Project": true}
	seen := make(map[string]bool)
	var unknown []string

	for _, action := range actions(s) {
		for _, match := range e.variablePattern.FindAllStringSubmatch(action, -1) {
			name := match[1]
			if known[name] || seen[name] {
				continue
			}
			seen[name] = true
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// actions returns the text between each {{ and }} pair.
func actions(s string) []string {
	var out []string
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			return out
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return out
		}
		out = append(out, s[start+2:start+end])
		s = s[start+end+2:]
	}
}
