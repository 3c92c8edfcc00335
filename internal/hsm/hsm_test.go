package hsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentient-agi/enclave-trust/internal/cose"
)

func TestDebugDeviceDescribeValidates(t *testing.T) {
	d, err := NewDebugDevice("debug")
	require.NoError(t, err)
	defer d.Close()

	desc, err := d.Describe()
	require.NoError(t, err)
	require.NoError(t, ValidateDescription(desc))
}

func TestRandomAccumulatesRequestedBytes(t *testing.T) {
	d, err := NewDebugDevice("debug")
	require.NoError(t, err)
	defer d.Close()

	got, err := Random(d, 100)
	require.NoError(t, err)
	require.Len(t, got, 100)
}

func TestAttestationProducesVerifiableDocument(t *testing.T) {
	d, err := NewDebugDevice("debug")
	require.NoError(t, err)
	defer d.Close()

	docBytes, err := d.Attestation([]byte("user-data"), []byte("nonce"), []byte("pubkey"))
	require.NoError(t, err)
	require.NotEmpty(t, docBytes)

	doc, err := cose.Decode(docBytes)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Signature)
}

type stuckDevice struct{ val []byte }

func (s *stuckDevice) Describe() (Description, error) {
	return Description{ModuleID: "stuck", MaxPCRs: expectedMaxPCRs}, nil
}
func (s *stuckDevice) RandomOnce() ([]byte, error)                           { return s.val, nil }
func (s *stuckDevice) Attestation(u, n, p []byte) ([]byte, error)            { return nil, nil }
func (s *stuckDevice) Close() error                                         { return nil }

func TestRandomDetectsStuckDevice(t *testing.T) {
	d := &stuckDevice{val: []byte("always the same")}
	_, err := Random(d, 64)
	require.ErrorIs(t, err, ErrRandomStuck)
}
