package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultImageExtensions are the extensions treated as images when none are configured
var DefaultImageExtensions = []string{"png", "jpg", "jpeg"}

// EnsureDir creates a single directory level if it doesn't exist
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.Mkdir(dir, 0o755)
}

// GetFileExtension returns the lowercased file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file name ends in one of exts, ignoring case
func IsImageFile(filename string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultImageExtensions
	}
	ext := GetFileExtension(filename)
	if ext == "" {
		return false
	}
	for _, imgExt := range exts {
		if strings.EqualFold(ext, strings.TrimPrefix(imgExt, ".")) {
			return true
		}
	}
	return false
}

// CaptionFilename derives the output name for an input file: the full base name plus suffix
func CaptionFilename(inputFile, suffix string) string {
	return filepath.Base(inputFile) + suffix
}

// ListImageFiles lists image file names directly inside dir, sorted by name.
// Subdirectories are not descended into. Symlinks are followed and kept only
// when they resolve to a regular file.
func ListImageFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !IsImageFile(entry.Name(), exts) {
			continue
		}
		switch {
		case entry.Type().IsRegular():
		case entry.Type()&os.ModeSymlink != 0:
			info, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		default:
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
