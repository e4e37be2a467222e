package config

import (
	"fmt"
	"strings"
)

// Error types of a ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	FileName    string   `json:"fileName"`    // Base name of the file
	ErrorType   string   `json:"errorType"`   // Type of error (parse, validation, io)
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	LineNumber  int      `json:"lineNumber"`  // Line number where error occurred (if available)
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error

	cause error
}

// NewConfigurationError creates a configuration error wrapping cause.
func NewConfigurationError(filePath, errorType, message string, cause error) ConfigurationError {
	ce := ConfigurationError{
		FilePath:  filePath,
		FileName:  baseName(filePath),
		ErrorType: errorType,
		Message:   message,
		cause:     cause,
	}
	if cause != nil {
		ce.Details = cause.Error()
	}
	return ce
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.Details == "" {
		return fmt.Sprintf("%s: %s", ce.FileName, ce.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ce.FileName, ce.Message, ce.Details)
}

// Unwrap returns the underlying cause.
func (ce ConfigurationError) Unwrap() error {
	return ce.cause
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", ce.FileName))
	parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.LineNumber > 0 {
		parts = append(parts, fmt.Sprintf("  Line: %d", ce.LineNumber))
	}

	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
