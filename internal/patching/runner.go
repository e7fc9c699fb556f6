// Package patching runs the patch orchestration sequence: service cleanup,
// optional offline-scan setup, search, age filter, download/install, service
// teardown, and the reboot check. The sequence is strictly linear; the first
// fatal error aborts the remainder of the run.
package patching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/archmachina/winpatch/internal/logging"
	"github.com/archmachina/winpatch/internal/wua"
)

// Options are the named parameters of one patch run.
type Options struct {
	UpdateCab          bool
	UseOfflineScan     bool
	DryRun             bool
	AgeThresholdDays   int
	CanReboot          bool
	OfflineServiceName string
	CabPath            string
	RebootDelaySec     int
}

// CatalogSyncer refreshes the offline scan catalog when it is stale.
type CatalogSyncer interface {
	Sync(ctx context.Context) (bool, error)
}

// Runner executes one patch run against an update service.
type Runner struct {
	svc  wua.Service
	sync CatalogSyncer
	opts Options

	scheduleReboot func(delaySec int) error
	now            func() time.Time
	log            *slog.Logger
}

// NewRunner builds a Runner. sync may be nil when offline catalog refresh is
// disabled.
func NewRunner(svc wua.Service, sync CatalogSyncer, opts Options) *Runner {
	return &Runner{
		svc:            svc,
		sync:           sync,
		opts:           opts,
		scheduleReboot: ScheduleReboot,
		now:            time.Now,
		log:            logging.L("patching"),
	}
}

// Run executes the orchestration sequence. The returned error is the first
// fatal condition encountered; the caller is expected to log it and exit
// normally.
//
// A fatal error after offline-scan setup leaves the scan service registered;
// the entry cleanup of the next run removes it.
func (r *Runner) Run(ctx context.Context) error {
	// Entry cleanup: a previous run may have left its service behind.
	if err := r.svc.RemoveService(r.opts.OfflineServiceName); err != nil {
		r.log.Warn("stale service cleanup failed", "name", r.opts.OfflineServiceName, "error", err)
	}

	if r.opts.UseOfflineScan {
		if err := r.setupOfflineScan(ctx); err != nil {
			return err
		}
	}

	updates, err := r.svc.Search("IsInstalled=0")
	if err != nil {
		return &ErrSearchFailed{Err: err}
	}

	r.log.Info("search complete", "candidates", len(updates))
	for _, u := range updates {
		r.log.Info("candidate",
			"title", u.Title,
			"severity", u.Severity,
			"kb", u.KBNumber,
			"changed", u.LastDeploymentChangeTime.Format(time.RFC3339),
			"rebootRequired", u.RebootRequired)
	}

	filtered := FilterByAge(updates, r.opts.AgeThresholdDays, r.now())
	r.log.Info("age filter applied", "thresholdDays", r.opts.AgeThresholdDays, "eligible", len(filtered))
	for _, u := range filtered {
		r.log.Info("eligible", "title", u.Title, "kb", u.KBNumber)
	}

	switch {
	case r.opts.DryRun:
		r.log.Info("dry run, skipping download and install")
	case len(filtered) == 0:
		r.log.Info("nothing to do")
	default:
		if err := r.downloadInstall(filtered); err != nil {
			return err
		}
	}

	if err := r.svc.RemoveService(r.opts.OfflineServiceName); err != nil {
		r.log.Warn("service teardown failed", "name", r.opts.OfflineServiceName, "error", err)
	}

	return r.checkReboot()
}

// setupOfflineScan refreshes the catalog if configured, verifies it exists,
// and registers the scan-package service.
func (r *Runner) setupOfflineScan(ctx context.Context) error {
	if r.opts.UpdateCab {
		if r.sync == nil {
			return &ErrCatalogSync{Err: errors.New("no catalog synchronizer configured")}
		}
		if _, err := r.sync.Sync(ctx); err != nil {
			return &ErrCatalogSync{Err: err}
		}
	}

	if _, err := os.Stat(r.opts.CabPath); err != nil {
		return &ErrMissingCatalog{Path: r.opts.CabPath}
	}

	serviceID, err := r.svc.AddScanPackageService(r.opts.OfflineServiceName, r.opts.CabPath)
	if err != nil {
		return &ErrServiceRegistration{Name: r.opts.OfflineServiceName, Err: err}
	}

	r.log.Info("offline scan service registered",
		"name", r.opts.OfflineServiceName, "serviceId", serviceID)
	return nil
}

// downloadInstall downloads and installs the filtered updates as one batch
// each, in non-interactive mode.
func (r *Runner) downloadInstall(updates []wua.Update) error {
	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}

	r.log.Info("downloading updates", "count", len(ids))
	if err := r.svc.Download(ids); err != nil {
		return &ErrDownloadFailed{Err: err}
	}

	r.log.Info("installing updates", "count", len(ids))
	summary, err := r.svc.Install(ids)
	if err != nil {
		return &ErrInstallFailed{Err: err}
	}

	r.log.Info("install complete",
		"resultCode", summary.ResultCode,
		"rebootRequired", summary.RebootRequired)
	if summary.HResult != 0 {
		r.log.Warn("install reported HRESULT", "hresult", wua.FormatHResult(summary.HResult))
	}
	return nil
}

// checkReboot queries the reboot-required signal and schedules a delayed
// forced reboot when the run permits it.
func (r *Runner) checkReboot() error {
	required, err := r.svc.RebootRequired()
	if err != nil {
		return fmt.Errorf("reboot check failed: %w", err)
	}

	if reasons := PendingRebootReasons(); len(reasons) > 0 {
		r.log.Info("pending reboot indicators", "reasons", strings.Join(reasons, "; "))
	}

	switch {
	case !required:
		r.log.Info("no reboot required")
	case r.opts.DryRun:
		r.log.Info("reboot required, skipped for dry run")
	case !r.opts.CanReboot:
		r.log.Info("reboot required, reboots are not permitted")
	default:
		r.log.Info("scheduling reboot", "delaySec", r.opts.RebootDelaySec)
		if err := r.scheduleReboot(r.opts.RebootDelaySec); err != nil {
			return fmt.Errorf("schedule reboot failed: %w", err)
		}
	}
	return nil
}
