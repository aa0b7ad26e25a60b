package change

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Manifest describes a change registration file.
type Manifest struct {
	ID     string         `yaml:"id"`
	Module string         `yaml:"module"`
	Title  string         `yaml:"title"`
	Tasks  []ManifestTask `yaml:"tasks"`
}

// ManifestTask is one task entry. A plain string is shorthand for a
// task with only a title.
type ManifestTask struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// UnmarshalYAML accepts either a scalar title or an {id, title} map.
func (t *ManifestTask) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.ID = ""
		t.Title = value.Value
		return nil
	}
	type plain ManifestTask
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = ManifestTask(p)
	return nil
}

// LoadManifest reads and validates a YAML manifest. Tasks without an
// explicit ID are numbered by position, starting at 1.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: id is required", path)
	}
	for i := range m.Tasks {
		if m.Tasks[i].Title == "" {
			return nil, fmt.Errorf("manifest %s: task %d has no title", path, i+1)
		}
		if m.Tasks[i].ID == "" {
			m.Tasks[i].ID = strconv.Itoa(i + 1)
		}
	}
	return &m, nil
}
