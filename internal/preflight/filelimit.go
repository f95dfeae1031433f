package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest open file limit accepted.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks RLIMIT_NOFILE. A bleve index holds one file
// per segment open while it is synced.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to read open file limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", lim.Cur, MinFileDescriptors)
	if lim.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Raise it with 'ulimit -n 4096' in the shell running mindual"
		return result
	}
	result.Status = StatusPass
	return result
}
