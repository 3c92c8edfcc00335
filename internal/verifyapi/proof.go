package verifyapi

import "github.com/sentient-agi/enclave-trust/internal/vrf"

// VerifyProof checks a VRF proof against user data and a public key for
// the given suite (spec.md §6's "Accept (user_data, vrf_public_key) → VRF
// verification outcome"). A malformed public key or proof is reported as
// an error; a well-formed but non-matching proof returns (false, nil).
func VerifyProof(suite vrf.Suite, userData, publicKeyBytes, proof []byte) (bool, error) {
	pub, err := vrf.UnmarshalPublicKey(suite, publicKeyBytes)
	if err != nil {
		return false, err
	}
	return vrf.Verify(pub, userData, proof)
}
