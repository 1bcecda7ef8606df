package specfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudestep/claudestep/internal/taskid"
)

const sampleSpec = `# Auth service

Some prose describing the project.

- [ ] Add login form
- [x] Set up project skeleton
- [ ] Add logout form
* [ ] Wire up session storage

Closing remarks, not a task.
`

func TestParse(t *testing.T) {
	tasks := Parse(sampleSpec)
	require.Len(t, tasks, 4)

	assert.Equal(t, 0, tasks[0].Position)
	assert.Equal(t, "Add login form", tasks[0].Description)
	assert.False(t, tasks[0].Done)

	assert.True(t, tasks[1].Done)
	assert.Equal(t, "Set up project skeleton", tasks[1].Description)

	assert.Equal(t, "Wire up session storage", tasks[3].Description)
	assert.Equal(t, 3, tasks[3].Position)
}

func TestParse_EmptyAndProseOnly(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("# Title\n\nJust prose.\n"))
}

func TestTaskID_MatchesIdentifierEngine(t *testing.T) {
	tasks := Parse("- [ ] Add   login   form\n")
	require.Len(t, tasks, 1)
	assert.Equal(t, taskid.IdentifierFor("Add login form"), tasks[0].ID())
}

func TestValidIdentifiers(t *testing.T) {
	tasks := Parse(sampleSpec)
	ids := ValidIdentifiers(tasks)
	assert.Len(t, ids, 4)
	_, ok := ids[taskid.IdentifierFor("Add logout form")]
	assert.True(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec), 0644))

	tasks, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, tasks, 4)

	_, err = Load(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claudestep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`projects:
  - name: auth
    spec: specs/auth.md
  - name: billing
    spec: specs/billing.md
`), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Projects, 2)

	spec, err := m.SpecFor("billing")
	require.NoError(t, err)
	assert.Equal(t, "specs/billing.md", spec)

	_, err = m.SpecFor("unknown")
	assert.Error(t, err)
}

func TestLoadManifest_RejectsIncompleteEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claudestep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n  - name: auth\n"), 0644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}
