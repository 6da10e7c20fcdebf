package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // the config field path, e.g. "consult.max_rounds"
	Value   any    // the invalid value
	Message string // human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateConsult()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateConsult() []ValidationError {
	var errors []ValidationError

	if c.Consult.AutoApproveUSD < 0 {
		errors = append(errors, ValidationError{
			Field:   "consult.auto_approve_usd",
			Value:   c.Consult.AutoApproveUSD,
			Message: "must be non-negative",
		})
	}
	// The phase table has no exit after cross-examination, so 3 is not a
	// runnable round count.
	if c.Consult.MaxRounds != 2 && c.Consult.MaxRounds != 4 {
		errors = append(errors, ValidationError{
			Field:   "consult.max_rounds",
			Value:   c.Consult.MaxRounds,
			Message: "must be 2 (stop after synthesis) or 4 (full protocol)",
		})
	}
	if c.Consult.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "consult.max_tokens",
			Value:   c.Consult.MaxTokens,
			Message: "must be positive",
		})
	}
	if c.Consult.Temperature < 0 || c.Consult.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "consult.temperature",
			Value:   c.Consult.Temperature,
			Message: "must be between 0 and 2",
		})
	}

	return errors
}

func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError

	for field, value := range map[string]string{
		"agents.analyst":    c.Agents.Analyst,
		"agents.skeptic":    c.Agents.Skeptic,
		"agents.pragmatist": c.Agents.Pragmatist,
		"agents.judge":      c.Agents.Judge,
	} {
		if value == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   value,
				Message: "model id must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}
