// Command attestation-pipeline wires components H-L and the verification
// API (§Q) of enclave-trust: it consumes the fs_hashes KV bucket, produces
// VRF proofs and HSM attestation documents for every digest, publishes them
// to fs_att_docs, and serves them over HTTP/HTTPS (spec.md §4.H-§4.L, §6).
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sentient-agi/enclave-trust/internal/attestation"
	"github.com/sentient-agi/enclave-trust/internal/config"
	"github.com/sentient-agi/enclave-trust/internal/kv"
	"github.com/sentient-agi/enclave-trust/internal/logging"
	"github.com/sentient-agi/enclave-trust/internal/verifyapi"
	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the enclave-trust config file")
	tlsCert := flag.String("tls-cert", "", "path to the TLS certificate for the verification API")
	tlsKey := flag.String("tls-key", "", "path to the TLS private key for the verification API")
	dev := flag.Bool("dev", false, "use the development log encoder")
	flag.Parse()

	logger, err := logging.New("attestation-pipeline", *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "attestation-pipeline: failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	if err := run(ctx, *configPath, *tlsCert, *tlsKey, logger); err != nil {
		logger.Errorw("fatal startup error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, tlsCert, tlsKey string, logger *zap.SugaredLogger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	device, err := cfg.ResolveDevice()
	if err != nil {
		return fmt.Errorf("open hsm device: %w", err)
	}
	defer device.Close()

	if _, err := device.Describe(); err != nil {
		return fmt.Errorf("describe hsm device: %w", err)
	}

	proofsKey, err := cfg.ProofsKey()
	if err != nil {
		return fmt.Errorf("load sk4proofs: %w", err)
	}

	var publisher attestation.Publisher
	var bus *kv.Bus
	if cfg.NATS.Enabled() {
		bus, err = kv.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer bus.Close()

		publisher, err = kv.NewAttestationPublisher(bus, cfg.NATS.AttDocsBucketName)
		if err != nil {
			return fmt.Errorf("open attestation doc bucket: %w", err)
		}
	}

	assembler := attestation.New(proofsKey, device, publisher, logger)
	server := verifyapi.New(assembler, vrf.Suite(cfg.VRFCipherSuite), logger)

	var tlsConfig *tls.Config
	if tlsCert != "" && tlsKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
		if err != nil {
			return fmt.Errorf("load tls key pair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	errs := make(chan error, 1)
	if cfg.NATS.Enabled() {
		entries, err := kv.Ingest(ctx, bus, cfg.NATS.HashBucketName, logger)
		if err != nil {
			return fmt.Errorf("start hash bucket ingest: %w", err)
		}
		go func() {
			for entry := range entries {
				if entry.Deleted {
					continue
				}
				assembler.Assemble(ctx, entry.Path, entry.Digest)
			}
		}()
	}

	go func() {
		errs <- server.Run(ctx, fmt.Sprintf(":%d", cfg.Ports.HTTP), fmt.Sprintf(":%d", cfg.Ports.HTTPS), tlsConfig)
	}()

	logger.Infow("attestation-pipeline starting",
		"http_port", cfg.Ports.HTTP, "https_port", cfg.Ports.HTTPS,
		"vrf_cipher_suite", cfg.VRFCipherSuite, "nats_enabled", cfg.NATS.Enabled())

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}
