// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

// Error is our own defined error type, mirroring the errors a pipeline
// stage or metadata operation can hit. It is not sent over the wire (the
// transport contract only ever carries opaque chunk bytes and the literal
// "ACK" payload); it exists so every layer reports failures the same way.
type Error int

const (
	// NoError means no error.
	NoError = Error(iota)

	//------ Config / CLI errors ------//

	// ErrBadConfig means a TOML config file was malformed or missing a
	// required field.
	ErrBadConfig

	// ErrInvalidArgument is returned if an argument is bad or confusing,
	// e.g. a negative test_load or a merge_size of zero.
	ErrInvalidArgument

	//------ Metadata errors ------//

	// ErrNoSuchStripe is returned when a stripe lookup fails.
	ErrNoSuchStripe

	// ErrNoSuchBlob is returned when a blob lookup fails.
	ErrNoSuchBlob

	// ErrNoSuchDisk is returned when a disk repair query names an unknown
	// disk.
	ErrNoSuchDisk

	// ErrInvalidStripe is returned when register_stripe is given an
	// incomplete or inconsistent StripeRecord.
	ErrInvalidStripe

	//------ EC / layout errors ------//

	// ErrUnsupportedCombination is returned for a fatal (ec_type, layout)
	// pairing, e.g. RS+Vertical or CLAY+Vertical.
	ErrUnsupportedCombination

	// ErrBadChunkSize is returned when chunk_size is not a multiple of the
	// EC's sub-chunk count.
	ErrBadChunkSize

	// ErrBadBlockSize is returned when a *ForDegradeRead stream's
	// block_size is not a multiple of blob_size.
	ErrBadBlockSize

	//------ Trace / merge errors ------//

	// ErrTraceExhaust signals the trace reader has no more records. It is
	// not fatal for BuildData (graceful stop) but is an error if no blobs
	// were accumulated at all.
	ErrTraceExhaust

	//------ Transport errors ------//

	// ErrTransport is returned when a queue push/pop/len operation fails
	// (connection or auth failure).
	ErrTransport

	// ErrBadAck is returned when a payload popped from an ACK queue is not
	// exactly "ACK". It is logged, not fatal.
	ErrBadAck

	//------ Blob store errors ------//

	// ErrKeyNotFound is returned when a blob store operation names an
	// unknown key.
	ErrKeyNotFound

	// ErrKeyExists is returned when create() is called on an existing key.
	ErrKeyExists

	//------ Worker command errors ------//

	// ErrUnknownCommand is returned when a BlockCommand names an unknown
	// command type or compute subtype. Fatal for that command.
	ErrUnknownCommand

	//------ Meta-error ------//

	// ErrUnknown is an error we're not really sure about.
	ErrUnknown
)

var description = map[Error]string{
	NoError: "no error",

	ErrBadConfig:       "invalid or incomplete configuration",
	ErrInvalidArgument: "invalid argument",

	ErrNoSuchStripe:  "stripe does not exist",
	ErrNoSuchBlob:    "blob does not exist",
	ErrNoSuchDisk:    "disk does not exist",
	ErrInvalidStripe: "stripe record is incomplete or inconsistent",

	ErrUnsupportedCombination: "unsupported (ec_type, blob_layout) combination",
	ErrBadChunkSize:           "chunk size is not a multiple of the EC sub-chunk count",
	ErrBadBlockSize:           "block size is not a multiple of blob size",

	ErrTraceExhaust: "trace exhausted",

	ErrTransport: "transport-level error",
	ErrBadAck:    "ack payload was not literal ACK",

	ErrKeyNotFound: "blob store key not found",
	ErrKeyExists:   "blob store key already exists",

	ErrUnknownCommand: "unknown command type",

	ErrUnknown: "unknown error",
}

// String returns a human readable error message.
func (e Error) String() string {
	if s, ok := description[e]; ok {
		return s
	}
	return "NO DESCRIPTION FOR ERROR FIX THIS"
}

// Error returns a golang error object with an error message corresponding to
// this core.Error, or nil if e is NoError.
func (e Error) Error() error {
	if e == NoError {
		return nil
	}
	return goError(e)
}

// Is checks whether the generic Go error 'g' is actually the receiver Error
// underneath, as in core.ErrNoSuchBlob.Is(err). Error itself is not a Go
// error; with the errors package, compare against the wrapped value:
// errors.Is(err, core.ErrNoSuchBlob.Error()).
func (e Error) Is(g error) bool {
	b, ok := g.(goError)
	return ok && (Error)(b) == e
}

// goError is a wrapper type to make our Error act like Go's 'error'.
type goError Error

// Error implements the 'error' interface.
func (g goError) Error() string {
	return (Error)(g).String()
}

// FromError extracts the underlying core.Error from a wrapped error, if any.
func FromError(err error) (Error, bool) {
	e, ok := err.(goError)
	return Error(e), ok
}

// Fatal reports whether an Error should abort the whole action rather than
// just the flow it occurred in (spec.md §7).
func (e Error) Fatal() bool {
	switch e {
	case ErrUnsupportedCombination, ErrUnknownCommand, ErrTransport, ErrBadConfig, ErrBadChunkSize, ErrBadBlockSize:
		return true
	}
	return false
}
