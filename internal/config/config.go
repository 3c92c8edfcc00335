// Package config implements the persisted configuration of spec.md §6:
// YAML on disk, validated at startup, with VRF key material generated and
// written back on first run the way the teacher's webhook config persists
// derived defaults rather than demanding every field up front.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/sentient-agi/enclave-trust/internal/hsm"
	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

// PortsConfig carries the redirect (HTTP) and TLS (HTTPS) listener ports.
type PortsConfig struct {
	HTTP  uint16 `yaml:"http"`
	HTTPS uint16 `yaml:"https"`
}

// KeysConfig holds the two VRF signing keys as hex-encoded PKCS#8 PEM.
// Empty fields trigger generation on Load.
type KeysConfig struct {
	SK4Proofs string `yaml:"sk4proofs"`
	SK4Docs   string `yaml:"sk4docs"`
}

// NATSConfig configures the JetStream KV bus (spec.md §6's `nats` block).
type NATSConfig struct {
	PersistencyEnabled int    `yaml:"nats_persistency_enabled"`
	URL                string `yaml:"nats_url"`
	HashBucketName      string `yaml:"hash_bucket_name"`
	AttDocsBucketName   string `yaml:"att_docs_bucket_name"`
}

// Enabled reports whether NATS persistency is turned on (int != 0).
func (n NATSConfig) Enabled() bool {
	return n.PersistencyEnabled != 0
}

// Config is the top-level persisted configuration (spec.md §6).
type Config struct {
	NSMFd          string      `yaml:"nsm_fd"`
	Ports          PortsConfig `yaml:"ports"`
	Keys           KeysConfig  `yaml:"keys"`
	VRFCipherSuite string      `yaml:"vrf_cipher_suite"`
	NATS           NATSConfig  `yaml:"nats"`

	path string
}

var validSuites = map[string]vrf.Suite{
	string(vrf.SECP256K1SHA256TAI): vrf.SECP256K1SHA256TAI,
	string(vrf.P256SHA256TAI):      vrf.P256SHA256TAI,
	string(vrf.SECP521R1SHA512TAI): vrf.SECP521R1SHA512TAI,
}

// Load reads path, applies defaults, validates, and generates+persists
// sk4proofs/sk4docs if either is empty, writing the config back to disk.
// No lock is taken: Load works on its own Config value.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.path = path
	c.applyDefaults()

	if err := c.validate(); err != nil {
		return nil, err
	}

	if c.Keys.SK4Proofs == "" || c.Keys.SK4Docs == "" {
		if err := c.generateMissingKeys(); err != nil {
			return nil, err
		}
		if err := c.Save(); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.NATS.HashBucketName == "" {
		c.NATS.HashBucketName = "fs_hashes"
	}
	if c.NATS.AttDocsBucketName == "" {
		c.NATS.AttDocsBucketName = "fs_att_docs"
	}
}

// validate aggregates every configuration defect via go-multierror so a
// fatal startup error reports the full list at once, not just the first.
func (c *Config) validate() error {
	var errs *multierror.Error
	if c.Ports.HTTP == 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: ports.http must be nonzero"))
	}
	if c.Ports.HTTPS == 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: ports.https must be nonzero"))
	}
	if _, ok := validSuites[c.VRFCipherSuite]; !ok {
		errs = multierror.Append(errs, fmt.Errorf("config: unsupported vrf_cipher_suite %q", c.VRFCipherSuite))
	}
	if c.NATS.Enabled() && c.NATS.URL == "" {
		errs = multierror.Append(errs, fmt.Errorf("config: nats.nats_url required when nats_persistency_enabled is set"))
	}
	return errs.ErrorOrNil()
}

func (c *Config) generateMissingKeys() error {
	if c.Keys.SK4Proofs == "" {
		pem, err := generateKeyHex(validSuites[c.VRFCipherSuite])
		if err != nil {
			return fmt.Errorf("config: generate sk4proofs: %w", err)
		}
		c.Keys.SK4Proofs = pem
	}
	if c.Keys.SK4Docs == "" {
		// sk_docs always uses SECP521R1, independent of vrf_cipher_suite
		// (spec.md §3, §6).
		pem, err := generateKeyHex(vrf.SECP521R1SHA512TAI)
		if err != nil {
			return fmt.Errorf("config: generate sk4docs: %w", err)
		}
		c.Keys.SK4Docs = pem
	}
	return nil
}

func generateKeyHex(suite vrf.Suite) (string, error) {
	key, err := vrf.GenerateKey(suite)
	if err != nil {
		return "", err
	}
	pemBytes, err := key.MarshalPKCS8PEM()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", pemBytes), nil
}

// Save writes c back to its originating path.
func (c *Config) Save() error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(c.path, out, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", c.path, err)
	}
	return nil
}

// ProofsKey decodes and parses Keys.SK4Proofs into a VRF private key on the
// configured vrf_cipher_suite.
func (c *Config) ProofsKey() (*vrf.PrivateKey, error) {
	suite, ok := validSuites[c.VRFCipherSuite]
	if !ok {
		return nil, fmt.Errorf("config: unsupported vrf_cipher_suite %q", c.VRFCipherSuite)
	}
	return c.decodeKey(c.Keys.SK4Proofs, suite)
}

// DocsKey decodes and parses Keys.SK4Docs into a VRF private key. sk_docs
// always uses SECP521R1, independent of vrf_cipher_suite (spec.md §3, §6).
func (c *Config) DocsKey() (*vrf.PrivateKey, error) {
	return c.decodeKey(c.Keys.SK4Docs, vrf.SECP521R1SHA512TAI)
}

func (c *Config) decodeKey(hexPEM string, suite vrf.Suite) (*vrf.PrivateKey, error) {
	pemBytes := make([]byte, len(hexPEM)/2)
	if _, err := fmt.Sscanf(hexPEM, "%x", &pemBytes); err != nil {
		return nil, fmt.Errorf("config: decode key hex: %w", err)
	}
	return vrf.UnmarshalPKCS8PEM(suite, pemBytes)
}

// ResolveDevice opens the HSM device named by NSMFd (spec.md §6): "", "nsm",
// or "nsm_dev" open the real /dev/nsm driver; "debug" uses the in-memory
// emulator on fd 3's conceptual slot; any other value is parsed as a
// decimal fd number to wrap directly.
func (c *Config) ResolveDevice() (hsm.Device, error) {
	switch c.NSMFd {
	case "", "nsm", "nsm_dev":
		return hsm.OpenNSM("/dev/nsm")
	case "debug":
		return hsm.NewDebugDevice("debug")
	default:
		fd, err := strconv.Atoi(c.NSMFd)
		if err != nil {
			return nil, fmt.Errorf("config: nsm_fd %q is neither a known keyword nor a decimal fd", c.NSMFd)
		}
		dev := hsm.OpenNSMFd(fd)
		if dev == nil {
			return nil, fmt.Errorf("config: nsm_fd %q could not be opened on this platform", c.NSMFd)
		}
		return dev, nil
	}
}
