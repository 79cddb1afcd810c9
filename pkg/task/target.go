package task

import (
	"os"
)

// OutputTarget is a named, checkable filesystem location. A target counts as
// present when it is a readable, non-empty regular file, or a readable
// directory.
type OutputTarget struct {
	Path string `yaml:"path"`
}

// Exists reports whether the target is present and readable.
func (t OutputTarget) Exists() bool {
	info, err := os.Stat(t.Path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		f, err := os.Open(t.Path)
		if err != nil {
			return false
		}
		f.Close()
		return true
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	f, err := os.Open(t.Path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// TargetSet is the completion evidence of a task.
type TargetSet []OutputTarget

// Complete reports whether every target in the set is present and readable.
// An empty set is never complete: a task with no declared evidence cannot
// prove it ran.
func (ts TargetSet) Complete() bool {
	if len(ts) == 0 {
		return false
	}
	for _, t := range ts {
		if !t.Exists() {
			return false
		}
	}
	return true
}

// Missing returns the paths of targets that are not yet present.
func (ts TargetSet) Missing() []string {
	var missing []string
	for _, t := range ts {
		if !t.Exists() {
			missing = append(missing, t.Path)
		}
	}
	return missing
}

// Paths returns all target paths in declaration order.
func (ts TargetSet) Paths() []string {
	paths := make([]string, len(ts))
	for i, t := range ts {
		paths[i] = t.Path
	}
	return paths
}
