//go:build !windows

package wua

import "errors"

// ErrUnsupported is returned on platforms without a Windows Update Agent.
var ErrUnsupported = errors.New("windows update agent is only available on windows")

// Session is a stub on non-Windows platforms; every operation fails with
// ErrUnsupported.
type Session struct{}

func NewSession() *Session { return &Session{} }

func (s *Session) RemoveService(name string) error { return ErrUnsupported }

func (s *Session) AddScanPackageService(name, cabPath string) (string, error) {
	return "", ErrUnsupported
}

func (s *Session) Search(criteria string) ([]Update, error) { return nil, ErrUnsupported }

func (s *Session) Download(updateIDs []string) error { return ErrUnsupported }

func (s *Session) Install(updateIDs []string) (InstallSummary, error) {
	return InstallSummary{}, ErrUnsupported
}

func (s *Session) RebootRequired() (bool, error) { return false, ErrUnsupported }
