package kv

import (
	"context"
	"encoding/json"

	"github.com/sentient-agi/enclave-trust/internal/attestation"
)

// AttestationPublisher satisfies attestation.Publisher against the
// fs_att_docs bucket: value = JSON-encoded AttestationRecord (spec.md §6).
type AttestationPublisher struct {
	mirror *HashMirror
}

// NewAttestationPublisher opens (creating if absent) the attestation
// document bucket.
func NewAttestationPublisher(bus *Bus, bucket string) (*AttestationPublisher, error) {
	if bucket == "" {
		bucket = DefaultAttDocsBucket
	}
	kv, err := bus.openOrCreate(bucket, attDocsHistory)
	if err != nil {
		return nil, err
	}
	return &AttestationPublisher{mirror: &HashMirror{kv: kv}}, nil
}

func (p *AttestationPublisher) Publish(ctx context.Context, rec attestation.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.mirror.Put(ctx, rec.Path, b)
}
