package prep

import "time"

// Status is the stage a drive preparation is in.
type Status int

const (
	StatusPending Status = iota
	StatusFormatting
	StatusActivating
	StatusInstallingBootloader
	StatusComplete
	StatusFailed
)

// String returns the status name used in logs, metrics and the dashboard.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFormatting:
		return "formatting"
	case StatusActivating:
		return "activating"
	case StatusInstallingBootloader:
		return "installing_bootloader"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further status follows s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Update is one status transition of one drive.
type Update struct {
	Drive  string
	Status Status
	At     time.Time

	// Err is set with StatusFailed.
	Err error
}

// Callbacks receive status transitions. All fields are optional.
type Callbacks struct {
	OnStatus func(Update)
}
