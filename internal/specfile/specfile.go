// Package specfile reads checklist-style specification files into the
// ordered task sequence the identifier engine and task selector consume.
// It is deliberately thin: prompt templating and report rendering live
// elsewhere.
package specfile

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/claudestep/claudestep/internal/taskid"
)

// Task is one checklist item: its position in the spec and its raw text.
type Task struct {
	Position    int
	Description string
	Done        bool
}

// ID returns the task's content-derived identifier.
func (t Task) ID() string {
	return taskid.IdentifierFor(t.Description)
}

// checklistItem matches "- [ ] text" and "- [x] text" (also "* [ ]").
var checklistItem = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.+)$`)

// Parse reads checklist items from spec content, in order. Lines that are
// not checklist items (headings, prose) are ignored.
func Parse(content string) []Task {
	var tasks []Task
	scanner := bufio.NewScanner(strings.NewReader(content))
	position := 0
	for scanner.Scan() {
		m := checklistItem.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		tasks = append(tasks, Task{
			Position:    position,
			Description: strings.TrimSpace(m[2]),
			Done:        m[1] != " ",
		})
		position++
	}
	return tasks
}

// Load parses the spec file at path.
func Load(path string) ([]Task, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec %s: %w", path, err)
	}
	return Parse(string(content)), nil
}

// ValidIdentifiers returns the identifier set for the current task list.
func ValidIdentifiers(tasks []Task) map[string]struct{} {
	descriptions := make([]string, len(tasks))
	for i, t := range tasks {
		descriptions[i] = t.Description
	}
	return taskid.ValidSet(descriptions)
}

// Manifest maps project names to their spec files.
type Manifest struct {
	Projects []ManifestEntry `yaml:"projects"`
}

// ManifestEntry is one project in the manifest.
type ManifestEntry struct {
	Name string `yaml:"name"`
	Spec string `yaml:"spec"`
}

// LoadManifest reads the projects manifest (YAML).
func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("malformed manifest %s: %w", path, err)
	}
	for i, entry := range m.Projects {
		if entry.Name == "" || entry.Spec == "" {
			return nil, fmt.Errorf("manifest %s: project %d must set name and spec", path, i)
		}
	}
	return &m, nil
}

// SpecFor returns the spec path for a project, or an error if the project is
// not in the manifest.
func (m *Manifest) SpecFor(project string) (string, error) {
	for _, entry := range m.Projects {
		if entry.Name == project {
			return entry.Spec, nil
		}
	}
	return "", fmt.Errorf("project %s not found in manifest", project)
}
