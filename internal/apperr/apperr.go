// Package apperr holds the error types shared by the remote clients, the storage layer
// and the answer pipeline. Callers classify failures with errors.As.
package apperr

import "fmt"

// RemoteCallError is a transport or network failure talking to a classifier or
// conversation backend.
type RemoteCallError struct {
	Op  string
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// ProtocolError means the remote side answered, but the payload was malformed or empty.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s: %s", e.Op, e.Detail)
}

// ClassificationError is a boolean classifier reply outside {yes, no}.
// Reply holds the text exactly as the model returned it.
type ClassificationError struct {
	Reply string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("unexpected classifier reply %q, expected 'yes' or 'no'", e.Reply)
}

// StorageError wraps a failed persistence operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteCallError{Op: op, Err: err}
}

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
