package script

import "errors"

// ErrScriptNotFound is returned when a script ID cannot be found in the store.
var ErrScriptNotFound = errors.New("script not found")

// ErrSessionNotFound is returned when a phone number has no stored session.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownStepType is returned when decoding a step with an unrecognized
// "type" discriminator.
var ErrUnknownStepType = errors.New("unknown step type")
