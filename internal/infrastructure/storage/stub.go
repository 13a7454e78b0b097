package storage

import (
	"context"
	"time"
)

// NopStorage is used when object storage is disabled. Writes are dropped and
// downloads are unavailable.
type NopStorage struct{}

// NewNopStorage creates a NopStorage
func NewNopStorage() *NopStorage {
	return &NopStorage{}
}

// Put drops the data
func (NopStorage) Put(_ context.Context, key string, _ []byte, _ string) error {
	if key == "" {
		return errKeyRequired
	}
	return nil
}

// PresignGet always fails with ErrStorageDisabled
func (NopStorage) PresignGet(context.Context, string, time.Duration) (string, time.Time, error) {
	return "", time.Time{}, ErrStorageDisabled
}

// Exists reports false for every key
func (NopStorage) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errKeyRequired
	}
	return false, nil
}

// EnsureBucket is a no-op
func (NopStorage) EnsureBucket(context.Context) error {
	return nil
}

var _ ObjectStorage = NopStorage{}
