package platform

import "errors"

var (
	// ErrAuthExpired means the platform rejected the access token as expired
	// or invalidated. Callers map this to a "reconnect required" surface.
	ErrAuthExpired = errors.New("platform access token expired or invalid")
	// ErrUnrecognizedShape means a list endpoint responded with a payload
	// that is neither a {data: [...]} envelope nor a bare array.
	ErrUnrecognizedShape = errors.New("unrecognized response shape from platform")
	// ErrMisconfigured means client id/secret are missing.
	ErrMisconfigured = errors.New("platform client is misconfigured")
)
