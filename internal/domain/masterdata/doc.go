// Package masterdata holds the locally mirrored SAP master data (items and
// business partners) together with the per-entity sync watermark.
//
// Every record carries its provenance (Source), whether the local copy matches
// the remote one (SyncStatus) and an explicit Lifecycle used for soft delete.
package masterdata
