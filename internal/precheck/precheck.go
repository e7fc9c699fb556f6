// Package precheck validates environment preconditions before a patch run:
// the working directory must exist (or be creatable) and the system volume
// and working-directory volume must both have enough free space.
package precheck

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
)

// Check is one individual check result.
type Check struct {
	Name    string
	Passed  bool
	Message string
}

// Result captures the outcome of all precondition checks.
type Result struct {
	OK     bool
	Checks []Check
}

// Options configures the checks to run.
type Options struct {
	WorkDir   string
	MinFreeMB uint64
}

// Error is returned by FirstError for a failed check.
type Error struct {
	Check   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("precondition %q failed: %s", e.Check, e.Message)
}

// diskUsage is swappable in tests.
var diskUsage = disk.Usage

// Run executes the precondition checks in order: working directory, system
// volume free space, working-directory volume free space.
func Run(opts Options) Result {
	result := Result{OK: true}

	add := func(check Check) {
		result.Checks = append(result.Checks, check)
		if !check.Passed {
			result.OK = false
		}
	}

	add(checkWorkDir(opts.WorkDir))
	add(checkFreeSpace("system_volume", systemVolume(), opts.MinFreeMB))
	add(checkFreeSpace("workdir_volume", opts.WorkDir, opts.MinFreeMB))

	return result
}

// FirstError returns the first failed check as an *Error, or nil.
func (r Result) FirstError() error {
	for _, check := range r.Checks {
		if !check.Passed {
			return &Error{Check: check.Name, Message: check.Message}
		}
	}
	return nil
}

// checkWorkDir creates the working directory if missing. An existing path
// that is not a directory fails the check.
func checkWorkDir(path string) Check {
	check := Check{Name: "work_dir"}

	if path == "" {
		check.Message = "working directory not configured"
		return check
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		check.Message = fmt.Sprintf("%s exists but is not a directory", path)
		return check
	case err == nil:
		check.Passed = true
		check.Message = fmt.Sprintf("%s exists", path)
		return check
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		check.Message = fmt.Sprintf("failed to create %s: %v", path, err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("created %s", path)
	return check
}

// checkFreeSpace verifies the volume holding path has at least minMB free.
func checkFreeSpace(name, path string, minMB uint64) Check {
	check := Check{Name: name}

	usage, err := diskUsage(path)
	if err != nil {
		check.Message = fmt.Sprintf("failed to check free space on %s: %v", path, err)
		return check
	}

	freeMB := usage.Free / (1024 * 1024)
	if freeMB < minMB {
		check.Message = fmt.Sprintf("insufficient free space on %s: %d MB free, minimum %d MB required", path, freeMB, minMB)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%d MB free on %s", freeMB, path)
	return check
}

func systemVolume() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\`
	}
	return "/"
}
