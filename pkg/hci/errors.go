package hci

import "errors"

var (
	// ErrPortOpen reports that the serial port could not be opened or
	// configured at the requested baud rate.
	ErrPortOpen = errors.New("hci: port open failed")

	// ErrTimeout reports that no completion event arrived within the
	// allotted timeout, across all retry attempts.
	ErrTimeout = errors.New("hci: timeout waiting for response")

	// ErrEncoding reports a command parameter that cannot be
	// represented in its computed byte width, or a parameter list whose
	// total width overflows the one-byte length field.
	ErrEncoding = errors.New("hci: parameter encoding failed")

	// ErrLengthMismatch reports a return-value extraction whose
	// requested widths exceed the available payload bytes.
	ErrLengthMismatch = errors.New("hci: return length mismatch")

	// ErrClosed reports use of a transport after Close.
	ErrClosed = errors.New("hci: transport closed")

	errShortFrame = errors.New("hci: short frame")
)
