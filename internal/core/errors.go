package core

import "fmt"

// ConnectionError reports a mailbox or outbound server that could not be
// reached or refused authentication.
type ConnectionError struct {
	Op     string
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s %s: %v", e.Op, e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProviderError reports a failed AI provider attempt: the call itself
// failed or its reply did not have the expected shape.
type ProviderError struct {
	Op       string
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %s via %s: %v", e.Op, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SendError reports a reply that could not be dispatched
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send error: to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// PersistenceError reports a decision log read or write failure
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
