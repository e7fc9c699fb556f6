package wua

import "fmt"

type hresultInfo struct {
	Name    string
	Message string
}

// knownHResults maps Windows Update Agent HRESULT codes seen in practice to
// readable descriptions.
var knownHResults = map[int]hresultInfo{
	0x8024000B: {"WU_E_CALL_CANCELLED", "operation was cancelled"},
	0x8024000E: {"WU_E_OPERATIONINPROGRESS", "another conflicting operation was in progress"},
	0x80240016: {"WU_E_INSTALL_NOT_ALLOWED", "another install was in progress or a reboot is pending"},
	0x80240004: {"WU_E_NOT_INITIALIZED", "Windows Update Agent is not initialized"},
	0x80240007: {"WU_E_INVALIDINDEX", "the index to a collection was invalid"},
	0x80240008: {"WU_E_ITEMNOTFOUND", "the key for the item queried could not be found"},
	0x80240017: {"WU_E_NOT_APPLICABLE", "operation is not applicable to the current state"},
	0x80240024: {"WU_E_NO_SERVICE", "Windows Update service could not be contacted"},
	0x8024002E: {"WU_E_WU_DISABLED", "non-managed server access is not allowed"},
	0x80240044: {"WU_E_PER_MACHINE_UPDATE_ACCESS_DENIED", "only administrators can perform this operation on per-machine updates"},
	0x80242014: {"WU_E_UH_POSTREBOOTSTILLPENDING", "the post-reboot operation for the update is still in progress"},

	0x80070005: {"E_ACCESSDENIED", "access denied, run elevated or as SYSTEM"},
	0x80070057: {"E_INVALIDARG", "one or more arguments are not valid"},
	0x80072EE2: {"WININET_E_TIMEOUT", "the operation timed out"},
	0x80072EFD: {"WININET_E_CONNECTION_RESET", "the connection with the server was reset"},
	0x80072EFE: {"WININET_E_CANNOT_CONNECT", "could not connect to the update server"},

	0x80246008: {"WU_E_DM_FAILTOCONNECTTOBITS", "the download manager was unable to connect to BITS"},
}

// FormatHResult returns a readable description of a WUA HRESULT code.
func FormatHResult(hr int) string {
	if hr == 0 {
		return "0x00000000: success"
	}
	if info, ok := knownHResults[hr]; ok {
		return fmt.Sprintf("0x%08X: %s: %s", uint32(hr), info.Name, info.Message)
	}
	return fmt.Sprintf("0x%08X: unknown HRESULT", uint32(hr))
}
