//go:build windows

package wua

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/archmachina/winpatch/internal/logging"
)

var log = logging.L("wua")

// serverSelectionOthers routes searches through a registered service
// instead of the default online source (WUA ServerSelection ssOthers).
const serverSelectionOthers = 3

// Session drives the Windows Update Agent COM object model. After
// AddScanPackageService succeeds, searches are restricted to the
// registered scan-package service.
type Session struct {
	serviceID string
}

// NewSession returns a Session bound to the local update agent.
func NewSession() *Session {
	return &Session{}
}

// RemoveService removes the registered update service with the given name.
// A name that is not registered is ignored.
func (s *Session) RemoveService(name string) error {
	return withCOM(func() error {
		manager, err := createDispatch("Microsoft.Update.ServiceManager")
		if err != nil {
			return err
		}
		defer manager.Release()

		servicesVar, err := oleutil.GetProperty(manager, "Services")
		if err != nil {
			return fmt.Errorf("services collection failed: %w", err)
		}
		defer servicesVar.Clear()

		services := servicesVar.ToIDispatch()
		if services == nil {
			return fmt.Errorf("services collection missing")
		}
		defer services.Release()

		count, err := getIntProperty(services, "Count")
		if err != nil {
			return fmt.Errorf("services count failed: %w", err)
		}

		for i := 0; i < count; i++ {
			itemVar, err := oleutil.CallMethod(services, "Item", i)
			if err != nil {
				continue
			}
			service := itemVar.ToIDispatch()
			itemVar.Clear()
			if service == nil {
				continue
			}

			serviceName, _ := getStringProperty(service, "Name")
			if serviceName != name {
				service.Release()
				continue
			}

			serviceID, err := getStringProperty(service, "ServiceID")
			service.Release()
			if err != nil {
				return fmt.Errorf("service ID lookup failed: %w", err)
			}

			log.Info("removing update service", "name", name, "serviceId", serviceID)
			if _, err := oleutil.CallMethod(manager, "RemoveService", serviceID); err != nil {
				return fmt.Errorf("remove service %s failed: %w", serviceID, err)
			}
			return nil
		}

		return nil
	})
}

// AddScanPackageService registers a transient service backed by the offline
// scan catalog at cabPath and returns its service ID. Subsequent searches
// through this Session use the registered service exclusively.
func (s *Session) AddScanPackageService(name, cabPath string) (string, error) {
	var serviceID string
	err := withCOM(func() error {
		manager, err := createDispatch("Microsoft.Update.ServiceManager")
		if err != nil {
			return err
		}
		defer manager.Release()

		serviceVar, err := oleutil.CallMethod(manager, "AddScanPackageService", name, cabPath)
		if err != nil {
			return fmt.Errorf("add scan package service failed: %w", err)
		}
		defer serviceVar.Clear()

		service := serviceVar.ToIDispatch()
		if service == nil {
			return fmt.Errorf("add scan package service returned no service")
		}
		defer service.Release()

		serviceID, err = getStringProperty(service, "ServiceID")
		if err != nil {
			return fmt.Errorf("service ID lookup failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.serviceID = serviceID
	return serviceID, nil
}

// Search queries for updates matching the WUA search criteria, e.g.
// "IsInstalled=0".
func (s *Session) Search(criteria string) ([]Update, error) {
	var updates []Update
	return updates, withCOM(func() error {
		session, err := createDispatch("Microsoft.Update.Session")
		if err != nil {
			return err
		}
		defer session.Release()

		result, err := s.search(session, criteria)
		if err != nil {
			return err
		}
		defer result.Release()

		return eachUpdate(result, func(update *ole.IDispatch) error {
			parsed, err := toUpdate(update)
			if err != nil {
				log.Warn("skipping unreadable update", "error", err)
				return nil
			}
			updates = append(updates, parsed)
			return nil
		})
	})
}

// Download downloads the given updates as one batch.
func (s *Session) Download(updateIDs []string) error {
	return withCOM(func() error {
		session, err := createDispatch("Microsoft.Update.Session")
		if err != nil {
			return err
		}
		defer session.Release()

		collection, err := s.collectUpdates(session, updateIDs)
		if err != nil {
			return err
		}
		defer collection.Release()

		downloaderVar, err := oleutil.CallMethod(session, "CreateUpdateDownloader")
		if err != nil {
			return fmt.Errorf("create downloader failed: %w", err)
		}
		defer downloaderVar.Clear()

		downloader := downloaderVar.ToIDispatch()
		if downloader == nil {
			return fmt.Errorf("create downloader failed: nil downloader")
		}
		defer downloader.Release()

		if _, err := oleutil.PutProperty(downloader, "Updates", collection); err != nil {
			return fmt.Errorf("set downloader updates failed: %w", err)
		}

		resultVar, err := oleutil.CallMethod(downloader, "Download")
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		defer resultVar.Clear()

		result := resultVar.ToIDispatch()
		if result == nil {
			return fmt.Errorf("download failed: missing result")
		}
		defer result.Release()

		resultCode, _ := getIntProperty(result, "ResultCode")
		if resultCode != 2 && resultCode != 3 {
			hresult, _ := getIntProperty(result, "HResult")
			return fmt.Errorf("download failed with result code %d: %s", resultCode, FormatHResult(hresult))
		}
		return nil
	})
}

// Install installs the given updates as one batch in quiet mode.
func (s *Session) Install(updateIDs []string) (InstallSummary, error) {
	var summary InstallSummary
	err := withCOM(func() error {
		session, err := createDispatch("Microsoft.Update.Session")
		if err != nil {
			return err
		}
		defer session.Release()

		collection, err := s.collectUpdates(session, updateIDs)
		if err != nil {
			return err
		}
		defer collection.Release()

		installerVar, err := oleutil.CallMethod(session, "CreateUpdateInstaller")
		if err != nil {
			return fmt.Errorf("create installer failed: %w", err)
		}
		defer installerVar.Clear()

		installer := installerVar.ToIDispatch()
		if installer == nil {
			return fmt.Errorf("create installer failed: nil installer")
		}
		defer installer.Release()

		if _, err := oleutil.PutProperty(installer, "Updates", collection); err != nil {
			return fmt.Errorf("set installer updates failed: %w", err)
		}
		if _, err := oleutil.PutProperty(installer, "ForceQuiet", true); err != nil {
			return fmt.Errorf("set quiet install failed: %w", err)
		}

		resultVar, err := oleutil.CallMethod(installer, "Install")
		if err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
		defer resultVar.Clear()

		result := resultVar.ToIDispatch()
		if result == nil {
			return fmt.Errorf("install failed: missing result")
		}
		defer result.Release()

		summary.ResultCode, _ = getIntProperty(result, "ResultCode")
		summary.RebootRequired, _ = getBoolProperty(result, "RebootRequired")
		summary.HResult, _ = getIntProperty(result, "HResult")

		if summary.ResultCode != 2 && summary.ResultCode != 3 {
			return fmt.Errorf("install failed with result code %d: %s", summary.ResultCode, FormatHResult(summary.HResult))
		}
		return nil
	})
	return summary, err
}

// RebootRequired reports the system-level reboot-required signal.
func (s *Session) RebootRequired() (bool, error) {
	var required bool
	err := withCOM(func() error {
		info, err := createDispatch("Microsoft.Update.SystemInfo")
		if err != nil {
			return err
		}
		defer info.Release()

		required, err = getBoolProperty(info, "RebootRequired")
		if err != nil {
			return fmt.Errorf("reboot required query failed: %w", err)
		}
		return nil
	})
	return required, err
}

// search runs a WUA search and returns the Updates collection. When a scan
// package service is registered the searcher is pointed at it exclusively.
func (s *Session) search(session *ole.IDispatch, criteria string) (*ole.IDispatch, error) {
	searcherVar, err := oleutil.CallMethod(session, "CreateUpdateSearcher")
	if err != nil {
		return nil, fmt.Errorf("create searcher failed: %w", err)
	}
	defer searcherVar.Clear()

	searcher := searcherVar.ToIDispatch()
	if searcher == nil {
		return nil, fmt.Errorf("create searcher failed: nil searcher")
	}
	defer searcher.Release()

	if s.serviceID != "" {
		if _, err := oleutil.PutProperty(searcher, "ServerSelection", serverSelectionOthers); err != nil {
			return nil, fmt.Errorf("set server selection failed: %w", err)
		}
		if _, err := oleutil.PutProperty(searcher, "ServiceID", s.serviceID); err != nil {
			return nil, fmt.Errorf("set service ID failed: %w", err)
		}
	}

	resultVar, err := oleutil.CallMethod(searcher, "Search", criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer resultVar.Clear()

	result := resultVar.ToIDispatch()
	if result == nil {
		return nil, fmt.Errorf("search failed: nil result")
	}
	defer result.Release()

	updatesVar, err := oleutil.GetProperty(result, "Updates")
	if err != nil {
		return nil, fmt.Errorf("updates collection failed: %w", err)
	}
	defer updatesVar.Clear()

	updates := updatesVar.ToIDispatch()
	if updates == nil {
		return nil, fmt.Errorf("updates collection missing")
	}
	updates.AddRef()
	return updates, nil
}

// collectUpdates re-searches for not-installed updates and builds an
// UpdateColl containing those whose update ID is in updateIDs.
func (s *Session) collectUpdates(session *ole.IDispatch, updateIDs []string) (*ole.IDispatch, error) {
	wanted := make(map[string]bool, len(updateIDs))
	for _, id := range updateIDs {
		wanted[id] = true
	}

	collectionObj, err := oleutil.CreateObject("Microsoft.Update.UpdateColl")
	if err != nil {
		return nil, fmt.Errorf("create update collection failed: %w", err)
	}
	defer collectionObj.Release()

	collection, err := collectionObj.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("update collection dispatch failed: %w", err)
	}

	updates, err := s.search(session, "IsInstalled=0")
	if err != nil {
		collection.Release()
		return nil, err
	}
	defer updates.Release()

	found := 0
	err = eachUpdate(updates, func(update *ole.IDispatch) error {
		id, err := updateID(update)
		if err != nil || !wanted[id] {
			return nil
		}
		if _, err := oleutil.CallMethod(collection, "Add", update); err != nil {
			return fmt.Errorf("add update %s failed: %w", id, err)
		}
		found++
		return nil
	})
	if err != nil {
		collection.Release()
		return nil, err
	}

	if found != len(updateIDs) {
		log.Warn("some updates were not found", "requested", len(updateIDs), "found", found)
	}
	if found == 0 {
		collection.Release()
		return nil, fmt.Errorf("none of the %d requested updates were found", len(updateIDs))
	}

	return collection, nil
}

// eachUpdate iterates the items of a WUA update collection.
func eachUpdate(updates *ole.IDispatch, fn func(*ole.IDispatch) error) error {
	count, err := getIntProperty(updates, "Count")
	if err != nil {
		return fmt.Errorf("updates count failed: %w", err)
	}

	for i := 0; i < count; i++ {
		itemVar, err := oleutil.CallMethod(updates, "Item", i)
		if err != nil {
			continue
		}
		update := itemVar.ToIDispatch()
		itemVar.Clear()
		if update == nil {
			continue
		}

		err = fn(update)
		update.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

// toUpdate reads the properties the orchestration cares about off an IUpdate.
func toUpdate(update *ole.IDispatch) (Update, error) {
	id, err := updateID(update)
	if err != nil {
		return Update{}, err
	}

	title, _ := getStringProperty(update, "Title")
	description, _ := getStringProperty(update, "Description")
	severity, _ := getStringProperty(update, "MsrcSeverity")
	changed, _ := getTimeProperty(update, "LastDeploymentChangeTime")

	if severity == "" {
		severity = "unknown"
	}

	return Update{
		ID:                       id,
		Title:                    title,
		Description:              description,
		Severity:                 strings.ToLower(severity),
		KBNumber:                 kbNumber(update),
		RebootRequired:           rebootBehavior(update),
		LastDeploymentChangeTime: changed,
	}, nil
}

func updateID(update *ole.IDispatch) (string, error) {
	identityVar, err := oleutil.GetProperty(update, "Identity")
	if err != nil {
		return "", err
	}
	defer identityVar.Clear()

	identity := identityVar.ToIDispatch()
	if identity == nil {
		return "", fmt.Errorf("update identity missing")
	}
	defer identity.Release()

	return getStringProperty(identity, "UpdateID")
}

// kbNumber extracts the first KB article ID from the update.
func kbNumber(update *ole.IDispatch) string {
	kbIDsVar, err := oleutil.GetProperty(update, "KBArticleIDs")
	if err != nil {
		return ""
	}
	defer kbIDsVar.Clear()

	kbIDs := kbIDsVar.ToIDispatch()
	if kbIDs == nil {
		return ""
	}
	defer kbIDs.Release()

	count, err := getIntProperty(kbIDs, "Count")
	if err != nil || count == 0 {
		return ""
	}

	itemVar, err := oleutil.CallMethod(kbIDs, "Item", 0)
	if err != nil {
		return ""
	}
	defer itemVar.Clear()

	kb := itemVar.ToString()
	if kb != "" && !strings.HasPrefix(kb, "KB") {
		kb = "KB" + kb
	}
	return kb
}

// rebootBehavior reports whether the update declares it can require a reboot.
func rebootBehavior(update *ole.IDispatch) bool {
	behaviorVar, err := oleutil.GetProperty(update, "InstallationBehavior")
	if err != nil {
		return false
	}
	defer behaviorVar.Clear()

	behavior := behaviorVar.ToIDispatch()
	if behavior == nil {
		return false
	}
	defer behavior.Release()

	code, _ := getIntProperty(behavior, "RebootBehavior")
	return code != 0
}

// withCOM runs action inside an apartment-threaded COM context pinned to
// one OS thread.
func withCOM(action func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return fmt.Errorf("failed to initialize COM: %w", err)
	}
	defer ole.CoUninitialize()

	return action()
}

func createDispatch(progID string) (*ole.IDispatch, error) {
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", progID, err)
	}
	defer unknown.Release()

	dispatch, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", progID, err)
	}
	return dispatch, nil
}

func getStringProperty(dispatch *ole.IDispatch, name string) (string, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return "", err
	}
	defer value.Clear()
	return value.ToString(), nil
}

func getIntProperty(dispatch *ole.IDispatch, name string) (int, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return 0, err
	}
	defer value.Clear()
	return int(value.Val), nil
}

func getBoolProperty(dispatch *ole.IDispatch, name string) (bool, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return false, err
	}
	defer value.Clear()
	return value.Val != 0, nil
}

func getTimeProperty(dispatch *ole.IDispatch, name string) (time.Time, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return time.Time{}, err
	}
	defer value.Clear()

	if t, ok := value.Value().(time.Time); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("property %s is not a date", name)
}
