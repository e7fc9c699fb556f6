package precheck

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
)

func withFakeUsage(t *testing.T, freeBytes uint64, err error) {
	t.Helper()
	orig := diskUsage
	diskUsage = func(path string) (*disk.UsageStat, error) {
		if err != nil {
			return nil, err
		}
		return &disk.UsageStat{Path: path, Free: freeBytes}, nil
	}
	t.Cleanup(func() { diskUsage = orig })
}

func TestRunCreatesMissingWorkDir(t *testing.T) {
	withFakeUsage(t, 10*1024*1024*1024, nil)

	workDir := filepath.Join(t.TempDir(), "patching")
	result := Run(Options{WorkDir: workDir, MinFreeMB: 1024})

	if !result.OK {
		t.Fatalf("expected checks to pass: %+v", result.Checks)
	}
	info, err := os.Stat(workDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected work dir to be created: %v", err)
	}
}

func TestRunIdempotentForExistingWorkDir(t *testing.T) {
	withFakeUsage(t, 10*1024*1024*1024, nil)

	workDir := t.TempDir()
	for i := 0; i < 2; i++ {
		if result := Run(Options{WorkDir: workDir, MinFreeMB: 1}); !result.OK {
			t.Fatalf("run %d failed: %+v", i, result.Checks)
		}
	}
}

func TestRunFailsWhenWorkDirIsFile(t *testing.T) {
	withFakeUsage(t, 10*1024*1024*1024, nil)

	path := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result := Run(Options{WorkDir: path, MinFreeMB: 1})
	if result.OK {
		t.Fatal("expected failure for non-directory work dir")
	}

	err := result.FirstError()
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if pErr.Check != "work_dir" {
		t.Fatalf("expected work_dir failure, got %q", pErr.Check)
	}
}

func TestRunFailsOnInsufficientFreeSpace(t *testing.T) {
	withFakeUsage(t, 100*1024*1024, nil) // 100 MB free

	result := Run(Options{WorkDir: t.TempDir(), MinFreeMB: 1024})
	if result.OK {
		t.Fatal("expected free-space failure")
	}

	err := result.FirstError()
	if err == nil || !strings.Contains(err.Error(), "insufficient free space") {
		t.Fatalf("expected insufficient free space error, got %v", err)
	}
}

func TestRunFailsWhenUsageUnavailable(t *testing.T) {
	withFakeUsage(t, 0, errors.New("volume gone"))

	result := Run(Options{WorkDir: t.TempDir(), MinFreeMB: 1})
	if result.OK {
		t.Fatal("expected failure when disk usage cannot be read")
	}
}

func TestFirstErrorNilWhenAllPass(t *testing.T) {
	withFakeUsage(t, 10*1024*1024*1024, nil)

	result := Run(Options{WorkDir: t.TempDir(), MinFreeMB: 1})
	if err := result.FirstError(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
