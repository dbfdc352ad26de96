package util

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// RemoveIfExists deletes the file if present.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}

const forbiddenFilenameChars = `/\:*?"<>|`

// SanitizeFilename makes an id or name safe to use as one path element.
// Spaces and forbidden characters become underscores, runs of underscores
// collapse, and the result is capped at 200 runes.
func SanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r < 0x20 || strings.ContainsRune(forbiddenFilenameChars, r) {
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "._-")

	const maxRunes = 200
	if utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// WriteFileAtomic writes through a temp file in the same directory and
// renames it into place, so readers never see a partial file.
func WriteFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		_ = RemoveIfExists(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = RemoveIfExists(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = RemoveIfExists(tmpName)
		return err
	}
	return nil
}
