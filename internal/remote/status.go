package remote

// Handle identifies one submitted build on the remote service.
type Handle string

func (h Handle) String() string { return string(h) }

// Status is the build status label reported by the remote service.
type Status string

// Status labels reported by the remote build service.
const (
	StatusUploading  Status = "Uploading"
	StatusUploaded   Status = "Uploaded"
	StatusExtracted  Status = "Extracted"
	StatusBuilding   Status = "Building"
	StatusEmulating  Status = "Emulating"
	StatusComplete   Status = "Complete"
	StatusError      Status = "Error"
	StatusDownloaded Status = "Downloaded"
	StatusInvalid    Status = "Invalid"
	StatusDeleted    Status = "Deleted"
	StatusUnknown    Status = "Unknown"
)

// IsSuccess reports whether s is the success terminal.
func (s Status) IsSuccess() bool { return s == StatusComplete }

// IsFailure reports whether s is a failure terminal.
func (s Status) IsFailure() bool {
	switch s {
	case StatusError, StatusDownloaded, StatusInvalid:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition follows s.
func (s Status) IsTerminal() bool { return s.IsSuccess() || s.IsFailure() }

// BuildInfo is one observation of the status endpoint.
type BuildInfo struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Outcome is the result of a successful build.
type Outcome struct {
	Handle   Handle
	Log      []byte
	Artifact []byte
}
