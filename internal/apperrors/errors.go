// Package apperrors provides domain-specific error types for lfmsum.
// These carry contextual information to aid debugging. Tokenizer failures and
// decode failures during token generation are not reported as errors at all
// (they degrade to empty or truncated output); a failed prefill inside a
// worker or reducer is wrapped in InferenceError and aborts the run.
package apperrors

import "fmt"

// ConfigurationError represents a fatal startup configuration problem: a
// config JSON file that is missing or malformed. A model file that cannot be
// loaded is reported as InferenceError instead.
type ConfigurationError struct {
	ConfigPath string
	Key        string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error in %s (key: %s): %v", e.ConfigPath, e.Key, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.ConfigPath, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InferenceError represents a fatal inference failure: loading the model,
// initializing the backend, creating a session, or prefilling a prompt. A
// decode failure during token generation is not an error; generation stops
// and keeps the text produced so far.
type InferenceError struct {
	Stage string // e.g. "load-model", "new-context", "decode-prefill"
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference error during %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// ChunkerError represents a fatal stdin-read failure.
type ChunkerError struct {
	Op  string
	Err error
}

func (e *ChunkerError) Error() string {
	return fmt.Sprintf("chunker %s failed: %v", e.Op, e.Err)
}

func (e *ChunkerError) Unwrap() error {
	return e.Err
}
