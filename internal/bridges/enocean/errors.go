package enocean

import "errors"

// Domain errors for the EnOcean bridge package.
var (
	// ErrNotConnected is returned when an operation requires a gateway
	// connection but the client is not connected.
	ErrNotConnected = errors.New("enocean: not connected to gateway")

	// ErrConnectionFailed is returned when the connection to the gateway fails.
	ErrConnectionFailed = errors.New("enocean: connection to gateway failed")

	// ErrInvalidAddress is returned when a device address string
	// cannot be parsed.
	ErrInvalidAddress = errors.New("enocean: invalid device address")

	// ErrUnsupportedEEP is returned when an equipment profile string is not
	// one of the profiles this bridge can decode.
	ErrUnsupportedEEP = errors.New("enocean: unsupported EEP")

	// ErrInvalidFrame is returned when an ESP2 frame is malformed.
	ErrInvalidFrame = errors.New("enocean: invalid ESP2 frame")

	// ErrChecksumMismatch is returned when an ESP2 frame checksum is wrong.
	ErrChecksumMismatch = errors.New("enocean: checksum mismatch")

	// ErrDecodeFailed is returned when a telegram does not match the
	// schema of the profile it is decoded under.
	ErrDecodeFailed = errors.New("enocean: decoding failed")

	// ErrSendFailed is returned when writing a telegram to the gateway fails.
	ErrSendFailed = errors.New("enocean: telegram send failed")
)
