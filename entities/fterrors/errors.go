//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package fterrors defines the error kinds surfaced by the index core.
// Callers should test with errors.Is against the exported sentinels,
// wrapping context is added with github.com/pkg/errors along the way.
package fterrors

import (
	"errors"
)

var (
	// NotFound signals an absent term, document or field. Never retried.
	NotFound = errors.New("not found")

	// Locked signals that the index write lock is held by another writer.
	Locked = errors.New("index locked")

	// ReadOnly signals a mutation attempt on a read-only index.
	ReadOnly = errors.New("index is read-only")

	// Corrupt signals a checksum, length or ordering violation on read.
	// Fatal for the affected segment.
	Corrupt = errors.New("corrupt segment data")

	// SchemaMismatch signals an unknown field on write or an incompatible
	// schema fingerprint on open.
	SchemaMismatch = errors.New("schema mismatch")

	// TimeLimit signals that the collector budget expired. Partial results
	// gathered before expiry remain valid.
	TimeLimit = errors.New("time limit exceeded")

	// IndexingError signals a field value inconsistent with its field kind.
	// The pending commit is aborted.
	IndexingError = errors.New("indexing error")
)

// IsRecoverable reports whether the search that produced err still carries
// usable partial results.
func IsRecoverable(err error) bool {
	return errors.Is(err, TimeLimit)
}

// IsTimeLimit reports whether err is or wraps TimeLimit.
func IsTimeLimit(err error) bool {
	return errors.Is(err, TimeLimit)
}
