package datamodel

import (
	"fmt"

	"github.com/alecthomas/units"
)

type CleanupCategory struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Icon      string   `json:"icon"`
	Paths     []string `json:"paths"`
	Size      int64    `json:"size"`
	SizeHuman string   `json:"size_human"`
	FileCount int64    `json:"file_count"`
	Selected  bool     `json:"selected"`
}

type CleanupAnalysis struct {
	Categories     []CleanupCategory `json:"categories"`
	TotalSize      int64             `json:"total_size"`
	TotalSizeHuman string            `json:"total_size_human"`
	TotalFiles     int64             `json:"total_files"`
}

type CleanupError struct {
	Category string `json:"category"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

type CleanupResult struct {
	FilesDeleted    int64          `json:"files_deleted"`
	BytesFreed      int64          `json:"bytes_freed"`
	BytesFreedHuman string         `json:"bytes_freed_human"`
	Failures        int64          `json:"failures"`
	Errors          []CleanupError `json:"errors"`
}

// CleanResult is the outcome of a temporary files cleanup.
type CleanResult struct {
	FilesDeleted int64 `json:"files_deleted"`
}

var sizeUnits = []struct {
	size   units.Base2Bytes
	suffix string
}{
	{units.TiB, "TiB"},
	{units.GiB, "GiB"},
	{units.MiB, "MiB"},
	{units.KiB, "KiB"},
}

// HumanSize formats a byte count with one decimal in the largest fitting
// binary unit, e.g. "1.5 MiB".
func HumanSize(n int64) string {
	for _, u := range sizeUnits {
		if n >= int64(u.size) {
			return fmt.Sprintf("%.1f %s", float64(n)/float64(u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%d B", n)
}
