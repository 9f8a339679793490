package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdentityPrefersCLIOverEnv(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "999")
	resolved := ResolveIdentity(Identity{JobID: "123"})
	assert.Equal(t, "123", resolved.JobID)
}

func TestResolveIdentityFallsBackToEnv(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "999")
	t.Setenv("SLURM_CPUS_ON_NODE", "4")
	t.Setenv("SLURM_ARRAY_JOB_ID", "")
	t.Setenv("SLURM_ARRAY_TASK_ID", "")

	resolved := ResolveIdentity(Identity{})

	assert.Equal(t, "999", resolved.JobID)
	assert.Equal(t, "4", resolved.CPUs)
}

func TestLabelPrefersArrayJobAndTask(t *testing.T) {
	id := Identity{JobID: "123", ArrayJobID: "555", ArrayTask: "2"}
	assert.Equal(t, "555_2", id.Label())
}

func TestLabelFallsBackToJobID(t *testing.T) {
	id := Identity{JobID: "123"}
	assert.Equal(t, "123", id.Label())
}

func TestLabelFallsBackToLocal(t *testing.T) {
	id := Identity{}
	assert.Equal(t, "local", id.Label())
}

func TestRotateOutputDirNoCollision(t *testing.T) {
	dir := t.TempDir()
	path, err := RotateOutputDir(dir, "local")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sps-local"), path)
}

func TestRotateOutputDirFindsFreeSlot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sps-local"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sps-local.1"), 0755))

	path, err := RotateOutputDir(dir, "local")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sps-local.2"), path)
}

func TestRotateOutputDirExhausted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sps-local"), 0755))
	for i := 1; i <= 9; i++ {
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sps-local."+itoaHelper(i)), 0755))
	}

	_, err := RotateOutputDir(dir, "local")

	require.Error(t, err)
}

func itoaHelper(i int) string {
	return string(rune('0' + i))
}

func TestMemoryRequestGBConvertsBytes(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "memory", "slurm", "uid_1000", "job_123")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memory.soft_limit_in_bytes"), []byte("2147483648"), 0644))

	req := MemoryRequestGB(root, "1000", "123")

	assert.Equal(t, "2", req)
}

func TestMemoryRequestGBDefaultsOnMissingFile(t *testing.T) {
	root := t.TempDir()
	req := MemoryRequestGB(root, "1000", "999")
	assert.Equal(t, "0", req)
}
