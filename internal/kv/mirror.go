// Package kv wires the durable hash store and attestation cache to a NATS
// JetStream KV bus (spec.md §4.D, §4.K, §4.L): HashMirror satisfies
// hashstore.Mirror against the fs_hashes bucket; Ingest walks then watches
// that bucket to feed the attestation assembler; AttestationPublisher
// mirrors assembled records into fs_att_docs.
package kv

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
)

const (
	// DefaultHashBucket matches spec.md §6's fs_hashes default.
	DefaultHashBucket = "fs_hashes"
	// DefaultAttDocsBucket matches spec.md §6's fs_att_docs default.
	DefaultAttDocsBucket = "fs_att_docs"
	// hashHistory matches spec.md §6's "History >= 5" for fs_hashes.
	hashHistory = 5
	// attDocsHistory keeps "a small history" per spec.md §3.
	attDocsHistory = 5
)

// ErrNotConnected is returned by operations attempted before Connect.
var ErrNotConnected = errors.New("kv: not connected")

// Bus owns the NATS connection and JetStream context shared by every
// bucket handle this package opens, matching spec.md §5's "KV client is
// shared and internally supports concurrent publishers".
type Bus struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Connect dials url and opens a JetStream context.
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("enclave-trust"))
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &Bus{nc: nc, js: js}, nil
}

// Close drains and closes the underlying connection.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

func (b *Bus) openOrCreate(bucket string, history uint8) (nats.KeyValue, error) {
	kv, err := b.js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	return b.js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, History: history})
}

// HashMirror implements hashstore.Mirror against a JetStream KV bucket.
type HashMirror struct {
	kv nats.KeyValue
}

// NewHashMirror opens (creating if absent) the hash bucket.
func NewHashMirror(bus *Bus, bucket string) (*HashMirror, error) {
	if bucket == "" {
		bucket = DefaultHashBucket
	}
	kv, err := bus.openOrCreate(bucket, hashHistory)
	if err != nil {
		return nil, err
	}
	return &HashMirror{kv: kv}, nil
}

// Normalized Paths are used directly as KV keys: nats.go's key validator
// permits '/', '.', '-', '_', '=' and alphanumerics, which covers every
// Path this process produces.

func (m *HashMirror) Put(_ context.Context, key string, value []byte) error {
	_, err := m.kv.Put(key, value)
	return err
}

func (m *HashMirror) Get(_ context.Context, key string) ([]byte, error) {
	entry, err := m.kv.Get(key)
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (m *HashMirror) Delete(_ context.Context, key string) error {
	return m.kv.Delete(key)
}
