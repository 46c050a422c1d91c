// Package jobflow holds the tagged error taxonomy shared by the
// orchestrator and the consumer. Every pipeline error carries a Kind and a
// Class so the consumer dispatches on Class instead of on a hierarchy of
// error types.
package jobflow

import "fmt"

// Class is the top-level disposition of an Error.
type Class int

const (
	// Transient errors are recoverable by retry: the message goes back to
	// the queue and retry_count is incremented.
	Transient Class = iota
	// Permanent errors are not recoverable: the message is dead-lettered
	// and the job is marked FAILED.
	Permanent
)

func (c Class) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// Kind identifies which condition raised the Error, per spec §7.
type Kind string

const (
	KindBrokerConnect     Kind = "BrokerConnectError"
	KindBlobIO            Kind = "BlobIOError"
	KindJobStoreUnavail   Kind = "JobStoreUnavailable"
	KindTranscriberCrash  Kind = "TranscriberCrashed"
	KindTranscriberTimeout Kind = "TranscriberTimeout"
	KindJobNotFound       Kind = "JobNotFound"
	KindInvalidAudio      Kind = "InvalidAudioFormat"
	KindCorruptedAudio    Kind = "CorruptedAudio"
	KindMissingDependency Kind = "MissingDependency"
	KindAllChunksFailed   Kind = "AllChunksFailed"
	KindOversizeUpload    Kind = "OversizeUpload"
	KindMalformedMessage  Kind = "MalformedMessage"
)

// classOf is the fixed Kind -> Class mapping from spec §7.
var classOf = map[Kind]Class{
	KindBrokerConnect:      Transient,
	KindBlobIO:             Transient,
	KindJobStoreUnavail:    Transient,
	KindTranscriberCrash:   Transient,
	KindTranscriberTimeout: Transient,
	KindJobNotFound:        Permanent,
	KindInvalidAudio:       Permanent,
	KindCorruptedAudio:     Permanent,
	KindMissingDependency:  Permanent,
	KindAllChunksFailed:    Permanent,
	KindOversizeUpload:     Permanent,
	KindMalformedMessage:   Permanent,
}

// Error is a tagged pipeline error: a Kind from the taxonomy, the Class it
// maps to, and the underlying cause.
type Error struct {
	Kind  Kind
	Class Class
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Class, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Class, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error, resolving Class from the fixed Kind->Class mapping.
func New(kind Kind, cause error) *Error {
	class, ok := classOf[kind]
	if !ok {
		class = Transient
	}
	return &Error{Kind: kind, Class: class, Cause: cause}
}

// IsPermanent reports whether err is a permanent jobflow.Error.
func IsPermanent(err error) bool {
	var je *Error
	if As(err, &je) {
		return je.Class == Permanent
	}
	return false
}

// IsTransient reports whether err is a transient jobflow.Error. An
// unrecognized error (e.g. a panic recovered as error) is treated as
// transient, matching the consumer's "unexpected panic -> requeue" rule.
func IsTransient(err error) bool {
	var je *Error
	if As(err, &je) {
		return je.Class == Transient
	}
	return true
}

// As walks err's single-error Unwrap chain and stores the first *Error it
// finds in target, like errors.As restricted to this one type.
func As(err error, target **Error) bool {
	for err != nil {
		if je, ok := err.(*Error); ok {
			*target = je
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
