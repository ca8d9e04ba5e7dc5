package domain

import "errors"

// ErrSessionNotFound is returned when a session key is unknown or has expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is the flow-level name for a lost session. Callers restart the flow.
var ErrSessionExpired = ErrSessionNotFound

// ErrDuplicateSubmission is returned when an identical request was finalized moments ago.
var ErrDuplicateSubmission = errors.New("duplicate submission")

// ErrChannelUnavailable is returned when no delivery surface could be obtained.
var ErrChannelUnavailable = errors.New("delivery channel unavailable")

// ErrDeliveryFailed wraps transient failures of the delivery layer.
var ErrDeliveryFailed = errors.New("delivery failed")

// ErrValidation is returned when a choice is inconsistent with earlier steps.
var ErrValidation = errors.New("invalid selection")

// ErrFragmentGone is returned by the delivery layer when a fragment was already deleted.
// The lifecycle tracker treats it as a successful deletion.
var ErrFragmentGone = errors.New("fragment already gone")

// ErrInvalidLevel signals a caller contract violation on the UI hierarchy.
var ErrInvalidLevel = errors.New("invalid hierarchy level")

// ErrMissingField is returned by record stores when a required field is empty.
var ErrMissingField = errors.New("missing required field")
