package cip

import "errors"

// Status is a CIP general status byte (§4.5 "Response framing").
type Status uint8

// General status codes this stack produces or recognizes.
const (
	StatusSuccess          Status = 0x00
	StatusConnFailure      Status = 0x01
	StatusInsufficientData Status = 0x03
	StatusPathSegmentError Status = 0x04
	StatusPathUnknown      Status = 0x05
	StatusPartialTransfer  Status = 0x06
	StatusServiceNotSupp   Status = 0x08
	StatusInvalidAttrValue Status = 0x09
	StatusAttrListError    Status = 0x0A
	StatusTooMuchData      Status = 0x0F
	StatusAttrNotSupported Status = 0x14
	StatusInvalidParameter Status = 0x20
)

// Sentinel error kinds per spec §7. Wrap these with fmt.Errorf("...: %w", ErrX)
// so callers can classify a failure with errors.Is without string matching.
var (
	// ErrFrame is a truncated or malformed encapsulation/CPF/EPATH.
	ErrFrame = errors.New("cip: frame error")
	// ErrService is a well-formed request the device rejected.
	ErrService = errors.New("cip: service error")
	// ErrRouting is a missing or failed Route table match.
	ErrRouting = errors.New("cip: routing error")
	// ErrIO is a socket-level failure: disconnect, timeout, refused connect.
	ErrIO = errors.New("cip: I/O error")
	// ErrConfig is a configuration document parse failure.
	ErrConfig = errors.New("cip: configuration error")
)

// ServiceError pairs a general status with an optional CIP mnemonic,
// letting handlers return a concrete status without inventing ad-hoc
// string errors, matching §7's "Service error" taxonomy entry.
type ServiceError struct {
	Status Status
	Reason string
}

func (e *ServiceError) Error() string {
	if e.Reason == "" {
		return "cip: service error, status 0x" + hexByte(byte(e.Status))
	}
	return "cip: " + e.Reason
}

func (e *ServiceError) Unwrap() error { return ErrService }

func hexByte(b byte) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{hex[b>>4], hex[b&0xF]})
}
