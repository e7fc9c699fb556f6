//go:build windows

package patching

import (
	"fmt"
	"os/exec"
	"strconv"

	"golang.org/x/sys/windows/registry"
)

// ScheduleReboot schedules a forced reboot after delaySec seconds via the
// Windows shutdown command. The call returns once the reboot is scheduled.
func ScheduleReboot(delaySec int) error {
	if delaySec < 0 {
		delaySec = 0
	}

	out, err := exec.Command("shutdown", "/r", "/t", strconv.Itoa(delaySec), "/f", "/d", "p:2:17").CombinedOutput()
	if err != nil {
		return fmt.Errorf("shutdown command failed: %v: %s", err, out)
	}
	return nil
}

// PendingRebootReasons checks registry locations that indicate a pending
// reboot and returns a reason for each that is set.
func PendingRebootReasons() []string {
	var reasons []string

	if keyExists(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\WindowsUpdate\Auto Update\RebootRequired`) {
		reasons = append(reasons, "Windows Update requires reboot")
	}
	if keyExists(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Component Based Servicing\RebootPending`) {
		reasons = append(reasons, "Component servicing reboot pending")
	}
	if hasPendingFileRenames() {
		reasons = append(reasons, "Pending file rename operations")
	}

	return reasons
}

func keyExists(root registry.Key, path string) bool {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	k.Close()
	return true
}

func hasPendingFileRenames() bool {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE,
		`SYSTEM\CurrentControlSet\Control\Session Manager`, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer k.Close()

	val, _, err := k.GetStringsValue("PendingFileRenameOperations")
	if err != nil {
		return false
	}
	return len(val) > 0
}
