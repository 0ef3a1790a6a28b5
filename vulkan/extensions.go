package vulkan

import (
	"github.com/pkg/errors"
)

// ExtensionSet resolves which extensions or layers to enable. Required
// names must all be available; wanted names are enabled when present.
type ExtensionSet struct {
	kind     string
	required []string
	wanted   []string
	actual   []string
}

func NewExtensionSet(kind string, actual, required, wanted []string) *ExtensionSet {
	return &ExtensionSet{kind: kind, actual: actual, required: required, wanted: wanted}
}

// Missing returns the required names that are not available.
func (e *ExtensionSet) Missing() []string {
	_, missing := e.split(e.required)
	return missing
}

// MissingWanted returns the wanted names that are not available.
func (e *ExtensionSet) MissingWanted() []string {
	_, missing := e.split(e.wanted)
	return missing
}

// Enabled returns the null-terminated names to hand to Vulkan, or an error
// listing missing required names.
func (e *ExtensionSet) Enabled() ([]string, error) {
	if missing := e.Missing(); len(missing) > 0 {
		return nil, errors.Errorf("missing required %s: %v", e.kind, missing)
	}
	seen := make(map[string]bool, len(e.required)+len(e.wanted))
	var names []string
	for _, list := range [][]string{e.required, e.wanted} {
		for _, name := range list {
			name = trimNull(name)
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	enabled, _ := checkExisting(e.actual, names)
	return enabled, nil
}

func (e *ExtensionSet) split(names []string) (present, missing []string) {
	have := make(map[string]bool, len(e.actual))
	for _, a := range e.actual {
		have[trimNull(a)] = true
	}
	for _, n := range names {
		if have[trimNull(n)] {
			present = append(present, n)
		} else {
			missing = append(missing, trimNull(n))
		}
	}
	return present, missing
}
