package structs

import "errors"

// Sentinel errors returned by the coordinator core. The HTTP layer maps
// these onto status codes; everything else is surfaced as a 500.
var (
	// ErrJobNotFound is returned when a job id does not resolve.
	ErrJobNotFound = errors.New("job not found")

	// ErrNodeNotFound is returned when a node id does not resolve.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotLockHolder is returned when a node attempts a mutating job
	// operation without holding the job's lease.
	ErrNotLockHolder = errors.New("job lock held by another node")

	// ErrPermissionDenied is returned on ownership violations, such as a
	// visibility toggle or cancel by a non-owner.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNodeClaimed is returned when a claim's fingerprint is already
	// bound to a different user.
	ErrNodeClaimed = errors.New("node already claimed by another user")

	// ErrFingerprintCollision is returned when a claim's public key
	// fingerprints to an id already registered under a different key.
	ErrFingerprintCollision = errors.New("public key fingerprint collides with an existing node")

	// ErrJobTerminal is returned on terminal operations against a job that
	// already completed or failed.
	ErrJobTerminal = errors.New("job already in a terminal state")

	// ErrStaleTimestamp is returned when a signature envelope's timestamp
	// falls outside the freshness window.
	ErrStaleTimestamp = errors.New("signature timestamp outside freshness window")

	// ErrInvalidSignature is returned when an envelope's signature does not
	// verify, or its key or signature encoding is malformed.
	ErrInvalidSignature = errors.New("signature verification failed")

	// ErrMissingSignatureFields is returned when an envelope omits one of
	// nodeId, publicKey, signature or timestamp.
	ErrMissingSignatureFields = errors.New("missing signature envelope fields")

	// ErrMissingPrompt is returned on job submission without a prompt.
	ErrMissingPrompt = errors.New("missing prompt for job submission")

	// ErrPublicKeyMismatch is returned when an authenticated call presents
	// a key other than the one bound to the node id.
	ErrPublicKeyMismatch = errors.New("public key does not match node identity")
)
