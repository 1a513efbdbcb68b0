package scanner

import "time"

// ScanPhase identifies which stage of a scan pass is running.
type ScanPhase string

const (
	// PhaseWalking is the filesystem traversal and per-file reconciliation.
	PhaseWalking ScanPhase = "walking"
	// PhaseReconciling is the post-walk mark-missing pass.
	PhaseReconciling ScanPhase = "reconciling"
	// PhaseComplete means the pass finished.
	PhaseComplete ScanPhase = "complete"
)

// ScanError records one per-file failure. Per-file errors never abort the
// pass; they are collected for the job status.
type ScanError struct {
	RelPath string    `json:"rel_path"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Progress is a point-in-time snapshot of a running scan.
type Progress struct {
	Phase       ScanPhase   `json:"phase"`
	Current     int         `json:"current"`
	Total       int         `json:"total"`
	CurrentItem string      `json:"current_item,omitempty"`
	Errors      []ScanError `json:"errors,omitempty"`
}

// ScanResult is the outcome of one scan pass over a library.
type ScanResult struct {
	LibraryID   string    `json:"library_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Added       int `json:"added"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Reactivated int `json:"reactivated"`
	Missing     int `json:"missing"`
	Errors      int `json:"errors"`
}
