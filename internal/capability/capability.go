// Package capability reports whether a dashboard module found the page elements it
// binds to. Modules return a Result instead of silently returning so callers and
// tests can assert on applicability.
package capability

import "fmt"

const notApplicableFormat = "%s: not applicable: %s"

// Result describes the outcome of probing a page for one module.
type Result struct {
	Module  string `json:"module"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Applied reports that the module bound to the page.
func Applied(module string) Result {
	return Result{Module: module, Applied: true}
}

// NotApplicable reports that the module skipped the page and why.
func NotApplicable(module string, reason string) Result {
	return Result{Module: module, Reason: reason}
}

func (result Result) String() string {
	if result.Applied {
		return result.Module + ": applied"
	}
	return fmt.Sprintf(notApplicableFormat, result.Module, result.Reason)
}

// Report collects module results in the order they were produced.
type Report []Result

// Lookup returns the most recent result recorded for module.
func (report Report) Lookup(module string) (Result, bool) {
	for index := len(report) - 1; index >= 0; index-- {
		if report[index].Module == module {
			return report[index], true
		}
	}
	return Result{}, false
}

// AppliedModules lists the modules that bound to the page.
func (report Report) AppliedModules() []string {
	modules := make([]string, 0, len(report))
	for _, result := range report {
		if result.Applied {
			modules = append(modules, result.Module)
		}
	}
	return modules
}
