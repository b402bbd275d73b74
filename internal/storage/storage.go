// Package storage is the media storage collaborator: it takes a local
// temporary file (written by the upload handler) and stores it durably,
// returning the public URL persisted on the user record.
package storage

import "context"

// UploadResult describes a stored media object.
type UploadResult struct {
	// URL is the public, opaque reference stored on user records.
	URL string
	// Key is the backend storage key, useful for logs.
	Key string
}

// Uploader stores a local file and returns its public reference.
//
// Upload removes localPath on failure — the temporary file must never
// outlive a failed request. On success the caller owns the cleanup (it may
// still need the file).
type Uploader interface {
	Upload(ctx context.Context, localPath string) (*UploadResult, error)
}
