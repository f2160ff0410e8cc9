// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package account defines the account record and the persistence boundary used
// by the registration flow.
//
// # Store contract
//
// Store implementations must:
//   - return (nil, nil) from FindByEmail and FindByID when nothing matches
//   - assign ID, CreatedAt and UpdatedAt in Save
//   - enforce email uniqueness atomically in Save, returning an error that wraps
//     ErrDuplicateEmail when the email is already taken
//   - return an error wrapping ErrNotFound from Update and Delete for unknown IDs
//
// Backends live in the memstore, postgres and sqlite subpackages.
package account
