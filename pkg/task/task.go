package task

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Resources describes the scheduler resource request for a task.
// Resource shape is never part of task identity.
type Resources struct {
	Slots       int    `yaml:"slots"`
	ParallelEnv string `yaml:"parallel_env"`
	WallClock   string `yaml:"wall_clock,omitempty"` // hh:mm:ss, empty means no hard limit
}

// Staging declares what must be shipped alongside the job descriptor.
type Staging struct {
	BundleCode bool     `yaml:"bundle_code"`
	Modules    []string `yaml:"modules,omitempty"` // directories tarred into packages.tar
}

// Descriptor is an immutable description of one unit of work: its identity,
// its scheduler resource request, the tasks it depends on, and the filesystem
// evidence that proves it ran. Construct it once, before execution, and do
// not mutate it afterwards.
type Descriptor struct {
	// Kind is the registry tag used to locate the Work implementation on
	// the execution side.
	Kind string

	// NameFormat templates the scheduler display name. Placeholders of the
	// form {param} are expanded from Params. Empty means "gridq_{kind}".
	NameFormat string

	// Params are the significant parameters. Two descriptors with equal
	// Kind and Params are the same task.
	Params map[string]string

	Resources Resources
	Deps      []*Descriptor
	Targets   TargetSet
	Staging   Staging
	Retry     Policy
}

// Fingerprint returns the stable identity of the task: a hex SHA-256 over
// the kind and the sorted significant parameters, each field length-prefixed
// to avoid ambiguity. Resource shape and staging flags are excluded.
func (d *Descriptor) Fingerprint() string {
	h := sha256.New()

	writeField := func(data []byte) {
		n := uint64(len(data))
		h.Write([]byte{
			byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
			byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
		})
		h.Write(data)
	}

	writeField([]byte(d.Kind))

	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeField([]byte{byte(len(keys))})
	for _, k := range keys {
		writeField([]byte(k))
		writeField([]byte(d.Params[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// JobName renders the scheduler display name from NameFormat and Params.
func (d *Descriptor) JobName() string {
	format := d.NameFormat
	if format == "" {
		format = "gridq_{kind}"
	}
	name := strings.ReplaceAll(format, "{kind}", d.Kind)
	for k, v := range d.Params {
		name = strings.ReplaceAll(name, "{"+k+"}", v)
	}
	return name
}

// Complete reports whether every output target exists and is readable.
// This is the single source of truth for "did the work actually happen",
// independent of anything the scheduler reports.
func (d *Descriptor) Complete() bool {
	return d.Targets.Complete()
}

// DependenciesComplete reports whether every declared dependency is complete.
// The caller (the orchestrator) enforces topological order; this is only the
// predicate it consults.
func (d *Descriptor) DependenciesComplete() bool {
	for _, dep := range d.Deps {
		if !dep.Complete() {
			return false
		}
	}
	return true
}

// SignificantParams returns a stable, human-readable dump of the task's
// identity-bearing fields, used in failure diagnostics.
func (d *Descriptor) SignificantParams() string {
	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "kind=%s", d.Kind)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, d.Params[k])
	}
	return b.String()
}
