package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pbauer/gridq/pkg/task"
)

// DescriptorFile is the serialized task snapshot inside a staging directory.
const DescriptorFile = "job.yaml"

// descriptorVersion guards against descriptor format drift between the
// submitting host and the compute node.
const descriptorVersion = 1

// descriptorDoc is the plain-data, versioned wire form of a task. It carries
// everything a remote process needs to reconstruct and execute the work:
// the kind tag dispatched through the registry, the significant parameters,
// and the output evidence. Dependencies are not shipped; by the time a job
// runs, its dependencies are already complete.
type descriptorDoc struct {
	Version   int               `yaml:"version"`
	Kind      string            `yaml:"kind"`
	Name      string            `yaml:"name"`
	Params    map[string]string `yaml:"params,omitempty"`
	Resources task.Resources    `yaml:"resources"`
	Targets   []string          `yaml:"targets"`
	Workdir   string            `yaml:"workdir"` // cwd of the submitting process
	Staging   task.Staging      `yaml:"staging"`
}

// WriteDescriptor serializes the task into dir/job.yaml.
func WriteDescriptor(dir string, d *task.Descriptor) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	doc := descriptorDoc{
		Version:   descriptorVersion,
		Kind:      d.Kind,
		Name:      d.JobName(),
		Params:    d.Params,
		Resources: d.Resources,
		Targets:   d.Targets.Paths(),
		Workdir:   cwd,
		Staging:   d.Staging,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("serializing job descriptor: %w", err)
	}

	path := filepath.Join(dir, DescriptorFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing job descriptor %s: %w", path, err)
	}
	return nil
}

// LoadDescriptor reads dir/job.yaml back into a descriptor, plus the
// submitting process's working directory. Used by the exec entry point on
// the compute node.
func LoadDescriptor(dir string) (*task.Descriptor, string, error) {
	path := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading job descriptor %s: %w", path, err)
	}

	var doc descriptorDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("parsing job descriptor %s: %w", path, err)
	}
	if doc.Version != descriptorVersion {
		return nil, "", fmt.Errorf("job descriptor %s has version %d, want %d", path, doc.Version, descriptorVersion)
	}

	targets := make(task.TargetSet, len(doc.Targets))
	for i, p := range doc.Targets {
		targets[i] = task.OutputTarget{Path: p}
	}

	d := &task.Descriptor{
		Kind:       doc.Kind,
		NameFormat: doc.Name,
		Params:     doc.Params,
		Resources:  doc.Resources,
		Targets:    targets,
		Staging:    doc.Staging,
	}
	return d, doc.Workdir, nil
}
