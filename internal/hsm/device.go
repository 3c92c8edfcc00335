// Package hsm implements the hardware security module client of spec.md
// §4.I: request random bytes, a device description, and attestation
// documents. Two Device implementations exist: nsmDevice drives the real
// Linux /dev/nsm ioctl interface; debugDevice emulates one in memory for
// non-Nitro development, matching the original's fd=3 debug convention.
package hsm

import "errors"

// Description mirrors the fields spec.md §4.I requires of describe():
// max_pcrs must be 32 and module id non-empty, else the device is
// considered misconfigured.
type Description struct {
	VersionMajor uint16
	VersionMinor uint16
	VersionPatch uint16
	ModuleID     string
	MaxPCRs      uint16
}

// Device is the HSM contract. Implementations must be safe for concurrent
// use; spec.md §5 notes the underlying driver serializes calls itself.
type Device interface {
	Describe() (Description, error)
	// RandomOnce performs one raw device request for random bytes. Random
	// drives this in a loop to accumulate n bytes and enforce the
	// stuck-device defense.
	RandomOnce() ([]byte, error)
	Attestation(userData, nonce, publicKey []byte) ([]byte, error)
	Close() error
}

var (
	// ErrEmptyRandom is returned when a single random request yields no
	// bytes, per spec.md §4.I's stuck-device defense.
	ErrEmptyRandom = errors.New("hsm: device returned empty random sequence")
	// ErrRandomStuck is returned when two consecutive random requests
	// return identical bytes.
	ErrRandomStuck = errors.New("hsm: device returned duplicate random sequence")
	// ErrEmptyDocument is returned when an attestation request succeeds but
	// yields zero bytes.
	ErrEmptyDocument = errors.New("hsm: device returned empty attestation document")
	// ErrMisconfigured is returned when Describe's response fails the
	// max_pcrs/module_id contract.
	ErrMisconfigured = errors.New("hsm: device description failed validation")
	// ErrInvalidResponse covers any malformed or unexpected device reply.
	ErrInvalidResponse = errors.New("hsm: invalid device response")
)

const (
	expectedMaxPCRs  = 32
	randomGenCycles  = 128
)

// Random loops until n bytes are accumulated, checking the stuck-device
// invariant on every inner call: every call must be non-empty and differ
// from the immediately preceding call (spec.md §4.I).
func Random(d Device, n int) ([]byte, error) {
	var prev []byte
	out := make([]byte, 0, n)

	for len(out) < n {
		for i := 0; i < randomGenCycles && len(out) < n; i++ {
			chunk, err := d.RandomOnce()
			if err != nil {
				return nil, err
			}
			if len(chunk) == 0 {
				return nil, ErrEmptyRandom
			}
			if bytesEqual(prev, chunk) {
				return nil, ErrRandomStuck
			}
			prev = chunk
			out = append(out, chunk...)
		}
	}
	return out[:n], nil
}

// ValidateDescription enforces spec.md §4.I's describe() contract.
func ValidateDescription(desc Description) error {
	if desc.MaxPCRs != expectedMaxPCRs || desc.ModuleID == "" {
		return ErrMisconfigured
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) || a == nil {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
