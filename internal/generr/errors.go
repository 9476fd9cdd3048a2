// Package generr defines the error taxonomy of a generation run.
//
// Every fatal condition surfaces as one of four typed errors:
//
//   - ConfigurationError: malformed or missing configuration, detected
//     before generation starts wherever possible
//   - MissingRuleError: a stratified rule with no value at any fallback level
//     (a configuration error discovered at lookup time)
//   - SimulationInvariantError: the simulator violated its own invariant,
//     which indicates a generator bug rather than bad data
//   - IntegrityError: a deterministic post-generation audit check failed
//
// StatisticalWarning is non-fatal unless the audit runs in strict mode.
//
// All helpers use errors.As so wrapped errors are classified correctly.
package generr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes generation errors.
type Code string

const (
	// CodeConfiguration indicates a malformed or missing parameter.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeMissingRule indicates a stratified lookup with no value at any level.
	CodeMissingRule Code = "MISSING_RULE"

	// CodeSimulationInvariant indicates the simulator broke its own invariant.
	CodeSimulationInvariant Code = "SIMULATION_INVARIANT"

	// CodeIntegrity indicates a deterministic audit check failed.
	CodeIntegrity Code = "INTEGRITY"

	// CodeStatistical indicates an observed rate outside its tolerance band.
	CodeStatistical Code = "STATISTICAL"
)

// ConfigurationError reports a malformed or missing configuration parameter.
type ConfigurationError struct {
	// Field is the dotted configuration path (e.g. "parameters.conversion_rate").
	Field string

	// Message is a human-readable description.
	Message string

	// Problems holds additional findings when several were collected at once.
	Problems []string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString(string(CodeConfiguration))
	b.WriteString(": ")
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Problems) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Problems, "; "))
		b.WriteString("]")
	}
	return b.String()
}

// NewConfigurationError creates a ConfigurationError for a single field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MissingRuleError reports a stratified lookup that no fallback level satisfied.
type MissingRuleError struct {
	Rule    string
	Channel string
	Tier    string
}

// Error implements the error interface.
func (e *MissingRuleError) Error() string {
	return fmt.Sprintf("%s: no value for rule %q (channel=%q, tier=%q) and no default",
		CodeMissingRule, e.Rule, e.Channel, e.Tier)
}

// SimulationInvariantError reports an internal invariant violation.
type SimulationInvariantError struct {
	// Invariant names the violated rule (e.g. "non-negative cumulative spend").
	Invariant string

	// CustomerID identifies the affected customer, if any.
	CustomerID string

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *SimulationInvariantError) Error() string {
	msg := fmt.Sprintf("%s: %s", CodeSimulationInvariant, e.Invariant)
	if e.CustomerID != "" {
		msg += fmt.Sprintf(" (customer=%s)", e.CustomerID)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + e.Details[k]
		}
		msg += " " + strings.Join(parts, " ")
	}
	return msg
}

// IntegrityError reports failed deterministic audit checks.
type IntegrityError struct {
	// Checks lists the names of the failed checks in report order.
	Checks []string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %d deterministic check(s) failed: %s",
		CodeIntegrity, len(e.Checks), strings.Join(e.Checks, ", "))
}

// StatisticalWarning reports an observed rate outside its tolerance band.
// It is an error value so strict mode can promote it to a fatal result.
type StatisticalWarning struct {
	Check     string
	Observed  float64
	Expected  float64
	Tolerance float64
}

// Error implements the error interface.
func (e *StatisticalWarning) Error() string {
	return fmt.Sprintf("%s: %s observed=%.4f expected=%.4f tolerance=%.4f",
		CodeStatistical, e.Check, e.Observed, e.Expected, e.Tolerance)
}

// IsConfigurationError returns true for ConfigurationError and MissingRuleError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	var me *MissingRuleError
	return errors.As(err, &me)
}

// IsInvariantError returns true if the error is a SimulationInvariantError.
func IsInvariantError(err error) bool {
	var ie *SimulationInvariantError
	return errors.As(err, &ie)
}

// IsIntegrityError returns true if the error is an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsStatisticalWarning returns true if the error is a StatisticalWarning.
func IsStatisticalWarning(err error) bool {
	var sw *StatisticalWarning
	return errors.As(err, &sw)
}

// CodeOf returns the Code of a classified error, or "" for unknown errors.
func CodeOf(err error) Code {
	var me *MissingRuleError
	switch {
	case errors.As(err, &me):
		return CodeMissingRule
	case IsConfigurationError(err):
		return CodeConfiguration
	case IsInvariantError(err):
		return CodeSimulationInvariant
	case IsIntegrityError(err):
		return CodeIntegrity
	case IsStatisticalWarning(err):
		return CodeStatistical
	default:
		return ""
	}
}
