package masterdata

// Source tags where a record's authoritative copy lives
type Source string

const (
	SourceSAP    Source = "sap"
	SourcePortal Source = "portal"
)

// IsValid checks if the source is known
func (s Source) IsValid() bool {
	return s == SourceSAP || s == SourcePortal
}

// SyncStatus tells whether the local copy matches the remote system
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
)

// IsValid checks if the sync status is known
func (s SyncStatus) IsValid() bool {
	return s == SyncStatusSynced || s == SyncStatusPending
}

// Label returns the human readable form used in exports
func (s SyncStatus) Label() string {
	switch s {
	case SyncStatusSynced:
		return "Synced"
	case SyncStatusPending:
		return "Pending"
	}
	return string(s)
}

// Label returns the human readable form used in exports
func (s Source) Label() string {
	switch s {
	case SourceSAP:
		return "SAP"
	case SourcePortal:
		return "Portal"
	}
	return string(s)
}
