package hsm

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sentient-agi/enclave-trust/internal/cose"
)

// debugDevice emulates the NSM device entirely in memory, matching the
// original's "fd=3" debug convention for non-Nitro development: every
// operation succeeds and returns internally-consistent, self-signed data
// rather than a hardware-rooted attestation.
type debugDevice struct {
	mu        sync.Mutex
	signerKey *ecdsa.PrivateKey
	cert      []byte
	moduleID  string
	lastRand  []byte
}

// NewDebugDevice constructs an in-memory HSM emulator. moduleID is reported
// by Describe; pass "debug" to match the config's "debug" nsm_fd sentinel.
func NewDebugDevice(moduleID string) (Device, error) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, err
	}
	cert, err := selfSignedCert(key)
	if err != nil {
		return nil, err
	}
	return &debugDevice{signerKey: key, cert: cert, moduleID: moduleID}, nil
}

func selfSignedCert(key *ecdsa.PrivateKey) ([]byte, error) {
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "enclave-trust debug NSM"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	return x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
}

func (d *debugDevice) Describe() (Description, error) {
	return Description{
		VersionMajor: 1,
		VersionMinor: 0,
		VersionPatch: 0,
		ModuleID:     d.moduleID,
		MaxPCRs:      expectedMaxPCRs,
	}, nil
}

func (d *debugDevice) RandomOnce() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	// crypto/rand never repeats in practice, but guard against an
	// adversarial/faked source the same way the real driver's caller does.
	if bytesEqual(d.lastRand, buf) {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
	}
	d.lastRand = buf
	return buf, nil
}

// Attestation builds a COSE_Sign1 document whose payload is a CBOR map of
// PCR placeholders plus the supplied user_data/nonce/public_key, signed by
// the emulator's self-signed certificate key.
func (d *debugDevice) Attestation(userData, nonce, publicKey []byte) ([]byte, error) {
	pcrs := map[int][]byte{}
	for i := 0; i < expectedMaxPCRs; i++ {
		pcrs[i] = make([]byte, 48)
	}

	payload, err := cbor.Marshal(map[string]interface{}{
		"module_id":   d.moduleID,
		"timestamp":   time.Now().UnixMilli(),
		"digest":      "SHA384",
		"pcrs":        pcrs,
		"certificate": d.cert,
		"cabundle":    [][]byte{d.cert},
		"public_key":  publicKey,
		"user_data":   userData,
		"nonce":       nonce,
	})
	if err != nil {
		return nil, err
	}

	protected, err := cbor.Marshal(map[int]interface{}{1: -35}) // alg: ES384
	if err != nil {
		return nil, err
	}

	tbs, err := cose.SigStructure(protected, payload)
	if err != nil {
		return nil, err
	}
	h := sha512.Sum384(tbs)

	r, s, err := ecdsa.Sign(rand.Reader, d.signerKey, h[:])
	if err != nil {
		return nil, err
	}
	size := (d.signerKey.Curve.Params().BitSize + 7) / 8
	sig := append(padTo(r.Bytes(), size), padTo(s.Bytes(), size)...)

	doc := &cose.Sign1{
		Protected:   protected,
		Unprotected: map[interface{}]interface{}{},
		Payload:     payload,
		Signature:   sig,
	}
	out, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyDocument
	}
	return out, nil
}

func (d *debugDevice) Close() error { return nil }

func padTo(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
