package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func names(fis []FileInfo) []string {
	out := make([]string, 0, len(fis))
	for _, fi := range fis {
		out = append(out, fi.Name)
	}
	return out
}

func TestFindWorkbooks(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	touch(t, filepath.Join(dir, "b.xlsx"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "a.XLSX"), base)
	touch(t, filepath.Join(dir, "c.xlsx"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "~$b.xlsx"), base)
	touch(t, filepath.Join(dir, "notes.csv"), base)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.xlsx"), 0o755))

	t.Run("directory", func(t *testing.T) {
		found, err := FindWorkbooks([]string{dir})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.XLSX", "b.xlsx", "c.xlsx"}, names(found))
	})

	t.Run("explicit file keeps any extension", func(t *testing.T) {
		found, err := FindWorkbooks([]string{filepath.Join(dir, "notes.csv")})
		require.NoError(t, err)
		assert.Equal(t, []string{"notes.csv"}, names(found))
	})

	t.Run("duplicates removed", func(t *testing.T) {
		found, err := FindWorkbooks([]string{filepath.Join(dir, "c.xlsx"), dir})
		require.NoError(t, err)
		assert.Equal(t, []string{"c.xlsx", "a.XLSX", "b.xlsx"}, names(found))
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := FindWorkbooks([]string{filepath.Join(dir, "missing.xlsx")})
		assert.Error(t, err)
	})
}
