package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// WorkbookExt is the only extension the upload pipeline can read.
const WorkbookExt = ".xlsx"

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FindWorkbooks expands args into workbook files. A file argument is kept
// as given whatever its extension; a directory contributes its .xlsx files,
// oldest first. Excel lock files (~$name.xlsx) are skipped. Duplicates are
// removed, keeping the first occurrence.
func FindWorkbooks(args []string) ([]FileInfo, error) {
	var out []FileInfo
	seen := make(map[string]bool)
	add := func(fi FileInfo) {
		key := filepath.Clean(fi.Path)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, fi)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(FileInfo{Path: arg, Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()})
			continue
		}
		found, err := findInDir(arg)
		if err != nil {
			return nil, err
		}
		for _, fi := range found {
			add(fi)
		}
	}
	return out, nil
}

func findInDir(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var found []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), WorkbookExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, FileInfo{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].ModTime.Equal(found[j].ModTime) {
			return found[i].Name < found[j].Name
		}
		return found[i].ModTime.Before(found[j].ModTime)
	})
	return found, nil
}
