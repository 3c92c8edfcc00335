package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

const minimalYAML = `
nsm_fd: debug
ports:
  http: 8080
  https: 8443
vrf_cipher_suite: P256_SHA256_TAI
nats:
  nats_persistency_enabled: 0
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadGeneratesAndPersistsKeys(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	c, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, c.Keys.SK4Proofs)
	require.NotEmpty(t, c.Keys.SK4Docs)
	require.Equal(t, "fs_hashes", c.NATS.HashBucketName)
	require.Equal(t, "fs_att_docs", c.NATS.AttDocsBucketName)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, c.Keys.SK4Proofs, reloaded.Keys.SK4Proofs)

	key, err := reloaded.ProofsKey()
	require.NoError(t, err)
	require.NotNil(t, key)
	require.Equal(t, vrf.P256SHA256TAI, key.Suite)

	// sk_docs always uses SECP521R1, regardless of vrf_cipher_suite
	// (here configured as P256_SHA256_TAI for sk_proofs).
	docsKey, err := reloaded.DocsKey()
	require.NoError(t, err)
	require.Equal(t, vrf.SECP521R1SHA512TAI, docsKey.Suite)
}

func TestLoadRejectsMissingPorts(t *testing.T) {
	path := writeConfig(t, `
nsm_fd: debug
vrf_cipher_suite: P256_SHA256_TAI
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnsupportedSuite(t *testing.T) {
	path := writeConfig(t, `
nsm_fd: debug
ports:
  http: 8080
  https: 8443
vrf_cipher_suite: NOT_A_SUITE
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestResolveDeviceDebug(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	c, err := Load(path)
	require.NoError(t, err)

	dev, err := c.ResolveDevice()
	require.NoError(t, err)
	desc, err := dev.Describe()
	require.NoError(t, err)
	require.Equal(t, "debug", desc.ModuleID)
}
