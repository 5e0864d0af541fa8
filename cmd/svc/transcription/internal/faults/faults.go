// Package faults classifies pipeline failures into a stable taxonomy and
// maps each class to a message safe to store on the job and show to the
// owner. Raw provider errors and subprocess output never reach the user.
package faults

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the class of a pipeline failure.
type Kind string

const (
	KindExtractionFailed   Kind = "EXTRACTION_FAILED"
	KindDownloadFailed     Kind = "DOWNLOAD_FAILED"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindPayloadTooLarge    Kind = "PAYLOAD_TOO_LARGE"
	KindNetworkError       Kind = "NETWORK_ERROR"
	KindUnexpectedResponse Kind = "UNEXPECTED_RESPONSE"
	KindUnknown            Kind = "UNKNOWN"
)

// Error carries a failure kind alongside the underlying cause. Message is
// internal detail for logs; the user facing text comes from UserMessage.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error with no underlying cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain, or
// KindUnknown when nothing in the chain is classified.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var userMessages = map[Kind]string{
	KindExtractionFailed:   "We couldn't read audio from that file. It may be corrupted or in an unsupported format.",
	KindDownloadFailed:     "We couldn't download media from that link. Check that it's public and try again.",
	KindUnauthorized:       "Transcription is temporarily unavailable. Please try again later.",
	KindServiceUnavailable: "The transcription service is temporarily unavailable. Please try again in a few minutes.",
	KindRateLimited:        "We're handling a lot of requests right now. Please try again shortly.",
	KindPayloadTooLarge:    "That file is too large to transcribe. Try a shorter recording.",
	KindNetworkError:       "A network problem interrupted transcription. Please try again.",
	KindUnexpectedResponse: "Transcription produced an unexpected result. Please try again.",
}

const genericUserMessage = "Something went wrong while transcribing. Please try again."

// UserMessage returns the owner facing description for an error. It is never
// empty, including for nil and unclassified errors. Unclassified errors keep
// the raw error text so the failure stays diagnosable from the job record.
func UserMessage(err error) string {
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	if err != nil {
		return fmt.Sprintf("%s (%s)", genericUserMessage, err)
	}
	return genericUserMessage
}
