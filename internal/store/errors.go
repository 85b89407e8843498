package store

import (
	"errors"
	"fmt"
)

var (
	// ErrProtected is returned when an operation would remove the default profile.
	ErrProtected = errors.New("profile is protected")
	// ErrExists is returned when a target name is already taken.
	ErrExists = errors.New("profile already exists")
)

// NotFoundError reports an unknown profile name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.Name)
}

// ConfigurationError reports a malformed profile record.
type ConfigurationError struct {
	Name   string // empty when the record had no usable name
	Index  int    // position in the record set, -1 when not applicable
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	where := "profile record"
	switch {
	case e.Name != "":
		where = fmt.Sprintf("profile %q", e.Name)
	case e.Index >= 0:
		where = fmt.Sprintf("profile record %d", e.Index)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IOError reports a failed export or import file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
