package signedurl

import "errors"

var (
	// ErrSignedURLRequestFailed is returned when no fresh signed URL could be
	// obtained. Recovery is never retried.
	ErrSignedURLRequestFailed = errors.New("signed URL request failed")

	// ErrUnsupportedResource is returned by a signer that doesn't know
	// how to sign the given resource.
	ErrUnsupportedResource = errors.New("resource is not supported by this signer")
)
