package proxy

import "errors"

// ErrConfirmationRequired guards production traffic: no call may target the
// production environment without an explicit caller confirmation.
var ErrConfirmationRequired = errors.New("production requests require explicit confirmation")

// ConfigError reports a missing or malformed endpoint configuration. It is
// fatal to the single call and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration: " + e.Reason
}
