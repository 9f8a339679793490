package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetric struct {
	requested string
	path      string
	keys      []string
	values    map[string][]float64
}

func (f *fakeMetric) Keys() []string           { return f.keys }
func (f *fakeMetric) Series(key string) []float64 { return f.values[key] }
func (f *fakeMetric) Requested() string        { return f.requested }
func (f *fakeMetric) OutputPath() string        { return f.path }

func TestRewriteTabHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.tsv")
	m := &fakeMetric{
		requested: "4",
		path:      path,
		keys:      []string{"worker"},
		values:    map[string][]float64{"worker": {1.0, 1.0, 1.0}},
	}

	require.NoError(t, RewriteTab(m, 3, 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "#TIME\tREQUESTED\tworker", lines[0])
	assert.Equal(t, "1\t4\t1", lines[1])
	assert.Equal(t, "2\t4\t1", lines[2])
	assert.Equal(t, "3\t4\t1", lines[3])

	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err), "backup must be removed after a clean rewrite")
}

func TestRewriteTabColumnAlignment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.tsv")
	m := &fakeMetric{
		requested: "0",
		path:      path,
		keys:      []string{"helper", "worker"},
		values: map[string][]float64{
			"helper": {0, 0.5},
			"worker": {1.0, 1.0},
		},
	}

	require.NoError(t, RewriteTab(m, 2, 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		assert.Len(t, fields, 2+len(m.keys))
	}
	assert.Equal(t, "1\t0\t0\t1", lines[1])
}

func TestRewriteTabReplacesPriorFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.tsv")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0644))

	m := &fakeMetric{
		requested: "0",
		path:      path,
		keys:      []string{"worker"},
		values:    map[string][]float64{"worker": {1.0}},
	}

	require.NoError(t, RewriteTab(m, 1, 1))

	// backup removed after success; the new content replaces the old
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "worker")
	assert.NotContains(t, string(data), "stale content")
}

// TestCrashBetweenRenameAndCloseLeavesConsistentBackup simulates a kill
// landing in RewriteTab's most dangerous window: after the prior file has
// been renamed to its ".bak" but before the new file has been written and
// closed. It reproduces that exact intermediate state by hand (the same
// rename RewriteTab performs as its first step) and asserts the ".bak" is
// still the last fully-written, readable snapshot -- the property the
// rename-before-write ordering exists to guarantee.
func TestCrashBetweenRenameAndCloseLeavesConsistentBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.tsv")
	m := &fakeMetric{
		requested: "0",
		path:      path,
		keys:      []string{"worker"},
		values:    map[string][]float64{"worker": {1.0}},
	}
	require.NoError(t, RewriteTab(m, 1, 1))

	consistentSnapshot, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.Rename(path, path+".bak"))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "new file must not exist yet in the crash window")

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, consistentSnapshot, backup, "backup must be the prior fully-written snapshot, never a partial write")

	m.values["worker"] = append(m.values["worker"], 1.0)
	require.NoError(t, RewriteTab(m, 2, 1))

	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err), "a later successful rewrite must clean up the leftover backup")
	recovered, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(recovered), "\n"), "\n")
	assert.Equal(t, "2\t0\t1", lines[2])
}

func TestAppendTabAddsSingleRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.tsv")
	m := &fakeMetric{
		requested: "0",
		path:      path,
		keys:      []string{"worker"},
		values:    map[string][]float64{"worker": {1.0, 1.0}},
	}

	require.NoError(t, RewriteTab(m, 1, 1))
	require.NoError(t, AppendTab(m, 2, 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2\t0\t1", lines[2])
}

func TestAppendTabKeyOrderMatchesRewriteHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.tsv")
	m := &fakeMetric{
		requested: "0",
		path:      path,
		keys:      []string{"alpha", "zeta"},
		values: map[string][]float64{
			"alpha": {1, 3},
			"zeta":  {2, 4},
		},
	}
	require.NoError(t, RewriteTab(m, 1, 1))
	require.NoError(t, AppendTab(m, 2, 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Equal(t, "#TIME\tREQUESTED\talpha\tzeta", lines[0])
	assert.Equal(t, "1\t0\t1\t2", lines[1])
	assert.Equal(t, "2\t0\t3\t4", lines[2])
}
