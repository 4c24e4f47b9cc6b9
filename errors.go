package docview

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no strategy handles a file.
	ErrUnsupportedFormat = errors.New("docview: unsupported document format")

	// ErrFileTooLarge is returned when a file exceeds Config.MaxUploadBytes.
	ErrFileTooLarge = errors.New("docview: file too large")

	// ErrConversionRequired is returned for legacy files when no conversion
	// service is configured.
	ErrConversionRequired = errors.New("docview: conversion service required for legacy format")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docview: invalid configuration")

	// ErrViewClosed is returned when opening a file on a closed view.
	ErrViewClosed = errors.New("docview: view is closed")

	// ErrNoDocument is returned when a page is requested before a paginated
	// document has been opened.
	ErrNoDocument = errors.New("docview: no paginated document open")
)

// ErrorKind classifies preview failures for user-facing messages.
type ErrorKind int

const (
	KindCorrupt ErrorKind = iota + 1
	KindNetwork
	KindUnavailable
	KindMalformed
	KindPageRender
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt"
	case KindNetwork:
		return "network"
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	case KindPageRender:
		return "page_render"
	case KindUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

const downloadHint = "You can still download the original file."

// PreviewError is a classified preview failure.
type PreviewError struct {
	Kind      ErrorKind
	Stage     string // where it failed, e.g. "open workbook" or "convert"
	Retryable bool
	Detail    string // short cause for the user, e.g. "the request timed out"
	Err       error
}

func (e *PreviewError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("docview: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("docview: %s at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *PreviewError) Unwrap() error { return e.Err }

// Download reports whether the user should be offered the original file.
// A page render failure leaves the rest of the document viewable.
func (e *PreviewError) Download() bool {
	return e.Kind != KindPageRender
}

// Message is the user-facing description. It never exposes internals and
// always offers the original file.
func (e *PreviewError) Message() string {
	var msg string
	switch e.Kind {
	case KindCorrupt:
		msg = "This file appears to be damaged or is not a valid document."
	case KindNetwork:
		msg = "The conversion service could not be reached"
		if e.Detail != "" {
			msg += " (" + e.Detail + ")"
		}
		msg += ". Try again in a moment."
	case KindUnavailable:
		return "Preview is not available for this format on this server. " +
			"Download the original file and open it in its native application."
	case KindMalformed:
		msg = "The converted document could not be displayed."
	case KindPageRender:
		msg = "This page could not be displayed. Other pages may still work."
	case KindUnsupported:
		msg = "Preview is not supported for this file type."
	default:
		msg = "The preview could not be shown."
	}
	return msg + " " + downloadHint
}
