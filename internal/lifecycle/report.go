package lifecycle

import "fmt"

// Warning is a best-effort step that failed without aborting its operation
type Warning struct {
	Step string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Step, w.Err)
}

// Report is the outcome of a successful lifecycle operation
type Report struct {
	Database string
	Dropped  bool
	// Filestore is true when the operation copied, moved, removed or
	// imported a file store directory
	Filestore bool
	Warnings  []Warning
}

func newReport(name string) *Report {
	return &Report{Database: name}
}

// HasWarnings reports whether any best-effort step failed
func (r *Report) HasWarnings() bool {
	return r != nil && len(r.Warnings) > 0
}

// Warned reports whether the named step produced a warning
func (r *Report) Warned(step string) bool {
	if r == nil {
		return false
	}
	for _, w := range r.Warnings {
		if w.Step == step {
			return true
		}
	}
	return false
}

func (r *Report) add(step string, err error) {
	r.Warnings = append(r.Warnings, Warning{Step: step, Err: err})
}
