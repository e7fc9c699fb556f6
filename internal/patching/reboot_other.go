//go:build !windows

package patching

import "errors"

// ScheduleReboot is not supported outside Windows.
func ScheduleReboot(delaySec int) error {
	return errors.New("reboot scheduling is only available on windows")
}

// PendingRebootReasons has no registry to inspect outside Windows.
func PendingRebootReasons() []string {
	return nil
}
