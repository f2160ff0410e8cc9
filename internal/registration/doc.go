// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package registration creates accounts.
//
// Service.RegisterUser validates the input, rejects emails that already have an
// account, hashes the password, persists the account and then attempts to send
// a verification email. Each attempt moves through these states:
//
//	Received → Validated → DuplicateChecked → CredentialHashed → Persisted → NotificationAttempted → Completed
//
// Validation and duplicate failures end in Rejected with no side effects.
// Lookup, hashing or persistence failures end in Failed; the error always
// carries account_created=false because no account is observable afterwards.
// Notification failures never fail the registration; they are reported on the
// Result.
package registration
