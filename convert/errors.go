package convert

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no conversion service URL is set.
var ErrNotConfigured = errors.New("convert: conversion service not configured")

// Kind classifies a failed conversion.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindUnreachable
	KindUnavailable
	KindMalformed
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	case KindFailed:
		return "failed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified conversion failure.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // server-provided or locally derived detail
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("convert: %s", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether trying again later might succeed. Only transport
// failures qualify.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnreachable
}
