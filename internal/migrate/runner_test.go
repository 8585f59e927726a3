package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_OrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"0010_b_up.sql":   {Data: []byte("SELECT 1")},
		"0002_a_up.sql":   {Data: []byte("SELECT 1")},
		"0002_a_down.sql": {Data: []byte("SELECT 1")},
		"readme.md":       {Data: []byte("x")},
		"x_up.sql":        {Data: []byte("SELECT 1")},
	}
	files, err := discover(fsys)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, int64(2), files[0].Version)
	assert.Equal(t, int64(10), files[1].Version)
}

func TestDiscover_DuplicateVersion(t *testing.T) {
	_, err := discover(fstest.MapFS{
		"0001_a_up.sql": {Data: []byte("")},
		"0001_b_up.sql": {Data: []byte("")},
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestEmbeddedMigrations(t *testing.T) {
	fsys, err := Runner{Dir: t.TempDir() + "/missing"}.source()
	require.NoError(t, err)
	files, err := discover(fsys)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "0001_show_runs_up.sql", files[0].Path)
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := pending(all, map[int64]bool{1: true, 3: true})
	assert.Equal(t, []Migration{{Version: 2}}, got)
	assert.Empty(t, pending(all, map[int64]bool{1: true, 2: true, 3: true}))
}

func TestSourcePrefersDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0007_extra_up.sql"), []byte("SELECT 1"), 0o644))

	fsys, err := Runner{Dir: dir}.source()
	require.NoError(t, err)
	files, err := discover(fsys)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(7), files[0].Version)
}
