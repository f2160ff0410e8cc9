// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package registration

// State is the stage a registration attempt has reached.
type State string

// Registration states.
const (
	StateReceived              State = "received"
	StateValidated             State = "validated"
	StateDuplicateChecked      State = "duplicate_checked"
	StateCredentialHashed      State = "credential_hashed"
	StatePersisted             State = "persisted"
	StateNotificationAttempted State = "notification_attempted"
	StateCompleted             State = "completed"
	StateRejected              State = "rejected"
	StateFailed                State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateFailed
}

// Outcome labels passed to Recorder.RegistrationOutcome.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Recorder receives registration and notification outcomes, typically for metrics.
type Recorder interface {
	RegistrationOutcome(outcome string)
	NotificationOutcome(kind string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RegistrationOutcome(string)       {}
func (nopRecorder) NotificationOutcome(string, bool) {}
