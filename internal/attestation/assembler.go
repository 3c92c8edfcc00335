// Package attestation implements the assembler of spec.md §4.J: given a
// (path, digest) pair it produces a VRF proof and a hardware-signed
// attestation document, then caches and publishes the result.
package attestation

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sentient-agi/enclave-trust/internal/hsm"
	"github.com/sentient-agi/enclave-trust/internal/syncmap"
	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

// Record is the spec.md §3 AttestationRecord: not versioned in the cache,
// last-writer-wins.
type Record struct {
	Path           string `json:"path"`
	DigestHex      string `json:"digest_hex"`
	VRFProofHex    string `json:"vrf_proof_hex"`
	VRFCipherSuite string `json:"vrf_cipher_suite"`
	AttDocBytes    []byte `json:"att_doc_bytes"`
}

type proofPayload struct {
	Path      string `json:"path"`
	DigestHex string `json:"digest_hex"`
}

type userDataPayload struct {
	Path           string `json:"path"`
	DigestHex      string `json:"digest_hex"`
	VRFProofHex    string `json:"vrf_proof_hex"`
	VRFCipherSuite string `json:"vrf_cipher_suite"`
}

// Publisher persists a Record to the attestation KV bucket (spec.md §4.L).
// Failure is best-effort: logged, never fatal to the assembler.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// Assembler binds hash events to attestation documents. It holds no
// suspension points beyond the HSM call and the publish, both of which are
// allowed to block per spec.md §5's blocking-worker model.
type Assembler struct {
	Key       *vrf.PrivateKey
	Device    hsm.Device
	Publisher Publisher
	Logger    *zap.SugaredLogger

	cache *syncmap.Map[Record]
}

// New creates an Assembler. key is sk_proofs; device is the HSM client.
func New(key *vrf.PrivateKey, device hsm.Device, publisher Publisher, logger *zap.SugaredLogger) *Assembler {
	return &Assembler{Key: key, Device: device, Publisher: publisher, Logger: logger, cache: syncmap.New[Record]()}
}

// Get returns the cached record for path, if any.
func (a *Assembler) Get(path string) (Record, bool) {
	return a.cache.Get(path)
}

// Len reports the number of cached records.
func (a *Assembler) Len() int {
	return a.cache.Len()
}

// Assemble runs the five-step pipeline of spec.md §4.J for a single
// (path, digest) pair. Failures at any step abort the emission for this
// pair (logged) rather than panicking; duplicates across retries are
// tolerated per spec.md §4.J since HSM nonces and KV history give every
// emission a distinct identity.
func (a *Assembler) Assemble(ctx context.Context, path string, digest []byte) {
	digestHex := hex.EncodeToString(digest)

	proofPayloadBytes, err := json.Marshal(proofPayload{Path: path, DigestHex: digestHex})
	if err != nil {
		a.logWarn("marshal proof payload", path, err)
		return
	}

	vrfProof, err := vrf.Prove(a.Key, proofPayloadBytes)
	if err != nil {
		a.logWarn("vrf prove", path, err)
		return
	}

	pubKey, err := vrf.DerivePublicKey(a.Key)
	if err != nil {
		a.logWarn("derive vrf public key", path, err)
		return
	}
	nonce, err := vrf.NonceFor(a.Key, proofPayloadBytes)
	if err != nil {
		a.logWarn("derive hsm nonce", path, err)
		return
	}

	userData, err := json.Marshal(userDataPayload{
		Path:           path,
		DigestHex:      digestHex,
		VRFProofHex:    hex.EncodeToString(vrfProof),
		VRFCipherSuite: string(a.Key.Suite),
	})
	if err != nil {
		a.logWarn("marshal user data", path, err)
		return
	}

	docBytes, err := a.Device.Attestation(userData, nonce, pubKey)
	if err != nil {
		a.logWarn("hsm attestation", path, err)
		return
	}

	rec := Record{
		Path:           path,
		DigestHex:      digestHex,
		VRFProofHex:    hex.EncodeToString(vrfProof),
		VRFCipherSuite: string(a.Key.Suite),
		AttDocBytes:    docBytes,
	}
	a.cache.Set(path, rec)

	if a.Publisher != nil {
		if err := a.Publisher.Publish(ctx, rec); err != nil {
			a.logWarn("publish attestation record", path, err)
		}
	}
}

func (a *Assembler) logWarn(step, path string, err error) {
	if a.Logger != nil {
		a.Logger.Warnw("attestation step failed, skipping emission", "step", step, "path", path, "err", err)
	}
}
