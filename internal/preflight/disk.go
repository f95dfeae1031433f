package preflight

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// MinDiskSpaceBytes covers a few hundred rendered pages plus the indexes.
const MinDiskSpaceBytes = 100 * humanize.MiByte

// CheckDiskSpace reports the free space on the filesystem holding dir.
func (c *Checker) CheckDiskSpace(dir string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	free := fs.Bavail * uint64(fs.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(free), formatBytes(MinDiskSpaceBytes))
	result.Status = StatusPass
	if free < MinDiskSpaceBytes {
		result.Status = StatusFail
		result.Details = "Rendered page images are kept under the data directory"
	}
	return result
}

func formatBytes(n uint64) string {
	return humanize.IBytes(n)
}
