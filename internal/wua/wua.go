// Package wua exposes the narrow slice of the Windows Update Agent surface
// the patch orchestration needs. The real implementation drives the WUA COM
// object model; a fake can be substituted for tests.
package wua

import "time"

// Update describes a single not-installed update returned by a search.
type Update struct {
	ID                       string
	Title                    string
	Description              string
	Severity                 string // critical, important, moderate, low, unknown
	KBNumber                 string // e.g. "KB5034441"
	RebootRequired           bool
	LastDeploymentChangeTime time.Time
}

// InstallSummary captures the outcome of a batch install.
type InstallSummary struct {
	ResultCode     int // WUA result code (2=succeeded, 3=succeeded with errors)
	RebootRequired bool
	HResult        int
}

// Service is the update-agent capability surface used by the orchestration.
//
// AddScanPackageService registers a transient service backed by an offline
// scan catalog and returns its service ID; subsequent Search calls are
// restricted to that service. RemoveService is idempotent: removing a name
// that is not registered is not an error.
type Service interface {
	RemoveService(name string) error
	AddScanPackageService(name, cabPath string) (string, error)
	Search(criteria string) ([]Update, error)
	Download(updateIDs []string) error
	Install(updateIDs []string) (InstallSummary, error)
	RebootRequired() (bool, error)
}
