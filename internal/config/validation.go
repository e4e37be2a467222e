package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/naming"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateProjectName checks that a project name is usable as a directory
// name and is not altered by the identifier codec.
func ValidateProjectName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError{Field: field, Value: name, Message: "is required"}
	}
	if naming.Encode(name) != name {
		return ValidationError{
			Field:   field,
			Value:   name,
			Message: fmt.Sprintf("contains reserved characters (would be stored as %q)", naming.Encode(name)),
		}
	}
	if name == "." || name == ".." {
		return ValidationError{Field: field, Value: name, Message: "is not a valid name"}
	}
	return nil
}

var retentionPolicies = []string{"immediate", "grace"}

// Validate checks a loaded configuration and returns every problem found.
func Validate(c Config) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(c.StateDir) == "" {
		errs.Add("stateDir", "is required")
	}
	if err := ValidateOneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "warning", "error"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateOneOf("logging.format", c.Logging.Format, []string{string(logging.FormatText), string(logging.FormatJSON)}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	r := c.Reconciler
	if r.Workers < 0 {
		errs.Add("reconciler.workers", "must not be negative", r.Workers)
	}
	if r.MaxRetries < 0 {
		errs.Add("reconciler.maxRetries", "must not be negative", r.MaxRetries)
	}
	validateDuration(&errs, "reconciler.initialBackoff", r.InitialBackoff)
	validateDuration(&errs, "reconciler.maxBackoff", r.MaxBackoff)
	validateDuration(&errs, "reconciler.reconcileTimeout", r.ReconcileTimeout)
	validateDuration(&errs, "reconciler.debounceInterval", r.DebounceInterval)
	if r.MaxBackoff > 0 && r.InitialBackoff > r.MaxBackoff {
		errs.Add("reconciler.initialBackoff", "must not exceed maxBackoff", r.InitialBackoff)
	}

	validateKind(&errs, "defaults.kind", c.Defaults.Kind)
	validateDuration(&errs, "defaults.syncInterval", c.Defaults.SyncInterval)
	validateDuration(&errs, "defaults.fetchTimeout", c.Defaults.FetchTimeout)
	validateRetention(&errs, "defaults.retention", c.Defaults.Retention)

	seen := make(map[string]bool)
	for i, p := range c.Projects {
		prefix := fmt.Sprintf("projects[%d]", i)
		if err := ValidateProjectName(prefix+".name", p.Name); err != nil {
			errs = append(errs, err.(ValidationError))
		} else if seen[p.Name] {
			errs.Add(prefix+".name", "is not unique", p.Name)
		}
		seen[p.Name] = true

		if p.Kind != "" {
			validateKind(&errs, prefix+".kind", p.Kind)
		}
		validateDuration(&errs, prefix+".syncInterval", p.SyncInterval)
		validateDuration(&errs, prefix+".fetchTimeout", p.FetchTimeout)
		if !p.Retention.IsZero() {
			validateRetention(&errs, prefix+".retention", p.Retention)
		}
		validateSource(&errs, prefix+".source", p.Source)
	}

	return errs
}

func validateDuration(errs *ValidationErrors, field string, d time.Duration) {
	if d < 0 {
		errs.Add(field, "must not be negative", d)
	}
}

func validateKind(errs *ValidationErrors, field, kind string) {
	if _, err := job.LookupKind(kind); err != nil {
		errs.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(job.KindNames(), ", ")), kind)
	}
}

func validateRetention(errs *ValidationErrors, field string, r RetentionConfig) {
	policy := r.Policy
	if policy == "" {
		policy = DefaultRetentionPolicy
	}
	if err := ValidateOneOf(field+".policy", policy, retentionPolicies); err != nil {
		*errs = append(*errs, err.(ValidationError))
	}
	if r.MaxPasses < 0 {
		errs.Add(field+".maxPasses", "must not be negative", r.MaxPasses)
	}
	validateDuration(errs, field+".maxAge", r.MaxAge)
	if policy == "immediate" && (r.MaxPasses != 0 || r.MaxAge != 0) {
		errs.Add(field, "maxPasses and maxAge only apply to the grace policy")
	}
}

func validateSource(errs *ValidationErrors, field string, s SourceConfig) {
	switch s.Type {
	case "", SourceTypeNone:
	case SourceTypeStatic:
		for i, b := range s.Branches {
			if strings.TrimSpace(b) == "" {
				errs.Add(fmt.Sprintf("%s.branches[%d]", field, i), "must not be empty")
			}
		}
	case SourceTypeFile:
		if s.HeadsFile == "" {
			errs.Add(field+".headsFile", "is required for file sources")
		}
	case SourceTypeGit:
		if (s.URL == "") == (s.Path == "") {
			errs.Add(field, "git sources need exactly one of url or path")
		}
	default:
		errs.Add(field+".type", "must be one of: none, static, file, git", s.Type)
	}
}
