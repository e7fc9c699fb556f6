package patching

import "fmt"

// ErrCatalogSync indicates the offline scan catalog could not be refreshed.
type ErrCatalogSync struct {
	Err error
}

func (e *ErrCatalogSync) Error() string {
	return fmt.Sprintf("catalog sync failed: %v", e.Err)
}

func (e *ErrCatalogSync) Unwrap() error { return e.Err }

// ErrMissingCatalog indicates offline scanning was requested but no catalog
// file is present.
type ErrMissingCatalog struct {
	Path string
}

func (e *ErrMissingCatalog) Error() string {
	return fmt.Sprintf("offline scan catalog missing: %s", e.Path)
}

// ErrServiceRegistration indicates the scan-package service could not be
// registered with the update agent.
type ErrServiceRegistration struct {
	Name string
	Err  error
}

func (e *ErrServiceRegistration) Error() string {
	return fmt.Sprintf("register service %q failed: %v", e.Name, e.Err)
}

func (e *ErrServiceRegistration) Unwrap() error { return e.Err }

// ErrSearchFailed indicates the update search could not be completed.
type ErrSearchFailed struct {
	Err error
}

func (e *ErrSearchFailed) Error() string {
	return fmt.Sprintf("update search failed: %v", e.Err)
}

func (e *ErrSearchFailed) Unwrap() error { return e.Err }

// ErrDownloadFailed indicates the batch download failed.
type ErrDownloadFailed struct {
	Err error
}

func (e *ErrDownloadFailed) Error() string {
	return fmt.Sprintf("update download failed: %v", e.Err)
}

func (e *ErrDownloadFailed) Unwrap() error { return e.Err }

// ErrInstallFailed indicates the batch install failed.
type ErrInstallFailed struct {
	Err error
}

func (e *ErrInstallFailed) Error() string {
	return fmt.Sprintf("update install failed: %v", e.Err)
}

func (e *ErrInstallFailed) Unwrap() error { return e.Err }
