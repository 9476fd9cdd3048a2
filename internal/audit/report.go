package audit

import (
	"errors"
	"fmt"

	"github.com/roach88/ecomgen/internal/generr"
)

// Class separates exact checks from tolerance-banded ones.
type Class string

const (
	// Deterministic checks must hold exactly; a failure is fatal.
	Deterministic Class = "deterministic"
	// Statistical checks compare observed rates with a tolerance band.
	Statistical Class = "statistical"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckResult is one named check of the report.
type CheckResult struct {
	Name    string `json:"name"`
	Class   Class  `json:"class"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Summary counts check outcomes.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the ordered list of check results of one audit.
type Report struct {
	RunID  string        `json:"run_id,omitempty"`
	Strict bool          `json:"strict"`
	Checks []CheckResult `json:"checks"`

	warnings []*generr.StatisticalWarning
}

// Summary counts the results by status.
func (r *Report) Summary() Summary {
	var s Summary
	for _, c := range r.Checks {
		switch c.Status {
		case StatusPass:
			s.Pass++
		case StatusWarn:
			s.Warn++
		case StatusFail:
			s.Fail++
		}
	}
	return s
}

// Failed returns the names of failed checks of a class in report order.
func (r *Report) Failed(class Class) []string {
	var out []string
	for _, c := range r.Checks {
		if c.Class == class && c.Status == StatusFail {
			out = append(out, c.Name)
		}
	}
	return out
}

// Warnings returns the statistical deviations found, whether reported as
// warnings or, in strict mode, as failures.
func (r *Report) Warnings() []*generr.StatisticalWarning {
	return r.warnings
}

// Err returns the error the report amounts to: an *generr.IntegrityError
// when a deterministic check failed, the joined statistical warnings when
// strict mode promoted them, and nil otherwise.
func (r *Report) Err() error {
	if failed := r.Failed(Deterministic); len(failed) > 0 {
		return &generr.IntegrityError{Checks: failed}
	}
	if r.Strict && len(r.warnings) > 0 {
		errs := make([]error, len(r.warnings))
		for i, w := range r.warnings {
			errs[i] = w
		}
		return errors.Join(errs...)
	}
	return nil
}

func (r *Report) pass(class Class, name, format string, args ...any) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Class: class, Status: StatusPass, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) fail(name, format string, args ...any) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Class: Deterministic, Status: StatusFail, Message: fmt.Sprintf(format, args...)})
}

// deviation records a statistical result outside its band: a warning, or a
// failure in strict mode.
func (r *Report) deviation(w *generr.StatisticalWarning, format string, args ...any) {
	r.warnings = append(r.warnings, w)
	status := StatusWarn
	if r.Strict {
		status = StatusFail
	}
	r.Checks = append(r.Checks, CheckResult{Name: w.Check, Class: Statistical, Status: status, Message: fmt.Sprintf(format, args...)})
}

// violations collects the problems a deterministic check found.
// Only the first few are kept for the message.
type violations struct {
	count    int
	examples []string
}

const maxExamples = 3

func (v *violations) add(format string, args ...any) {
	v.count++
	if len(v.examples) < maxExamples {
		v.examples = append(v.examples, fmt.Sprintf(format, args...))
	}
}

// report records the check as passed when v is empty, failed otherwise.
func (v *violations) report(r *Report, name, okMessage string) {
	if v.count == 0 {
		r.pass(Deterministic, name, "%s", okMessage)
		return
	}
	msg := fmt.Sprintf("%d violation(s): %s", v.count, v.examples[0])
	for _, e := range v.examples[1:] {
		msg += "; " + e
	}
	if v.count > len(v.examples) {
		msg += "; ..."
	}
	r.fail(name, "%s", msg)
}
