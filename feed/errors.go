package feed

import "github.com/iov-one/weave/errors"

var (
	// ErrFormat is returned when the downloaded feed cannot be
	// interpreted.
	ErrFormat = errors.Register(1210, "malformed feed")

	// ErrProof is returned when a candidate fails the proof of
	// knowledge check.
	ErrProof = errors.Register(1211, "invalid proof")
)
