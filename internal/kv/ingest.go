package kv

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Entry is a single hash-bucket observation fed to the attestation
// assembler: either a live digest (Deleted == false) or a removal, which
// the assembler ignores per spec.md §4.K ("Delete/Purge cause no
// attestation").
type Entry struct {
	Path    string
	Digest  []byte
	Deleted bool
}

// entryChannelCapacity matches spec.md §4.K's "1000 entries is reasonable"
// bounded-channel guidance.
const entryChannelCapacity = 1000

// Ingest runs the walker-then-watcher pair of spec.md §4.K against bucket,
// sending every observation to the returned channel. The walker has sent
// every existing key before the watcher is armed, satisfying spec.md §5's
// ordering guarantee that initial attestations precede live updates. The
// watcher then re-delivers each key's current value before any live
// update, so keys present at startup are sent twice. The channel is closed
// when ctx is canceled.
func Ingest(ctx context.Context, bus *Bus, bucket string, logger *zap.SugaredLogger) (<-chan Entry, error) {
	if bucket == "" {
		bucket = DefaultHashBucket
	}
	store, err := bus.openOrCreate(bucket, hashHistory)
	if err != nil {
		return nil, err
	}

	out := make(chan Entry, entryChannelCapacity)

	go func() {
		defer close(out)

		walkHashBucket(ctx, store, out, logger)

		watcher, err := store.WatchAll()
		if err != nil {
			if logger != nil {
				logger.Errorw("failed to arm hash bucket watcher", "bucket", bucket, "err", err)
			}
			return
		}
		defer watcher.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if upd == nil {
					// nats.go sends a nil marker once the watcher has caught
					// up to the bucket's current state; the walker already
					// covered that state so this is a no-op here.
					continue
				}
				entry := Entry{Path: upd.Key()}
				switch upd.Operation() {
				case nats.KeyValueDelete, nats.KeyValuePurge:
					entry.Deleted = true
				default:
					entry.Digest = upd.Value()
				}
				select {
				case out <- entry:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func walkHashBucket(ctx context.Context, store nats.KeyValue, out chan<- Entry, logger *zap.SugaredLogger) {
	keys, err := store.Keys()
	if err != nil {
		if err != nats.ErrNoKeysFound && logger != nil {
			logger.Errorw("failed to enumerate hash bucket", "err", err)
		}
		return
	}
	for _, key := range keys {
		entry, err := store.Get(key)
		if err != nil {
			if logger != nil {
				logger.Warnw("failed to read hash bucket key during walk", "key", key, "err", err)
			}
			continue
		}
		select {
		case out <- Entry{Path: key, Digest: entry.Value()}:
		case <-ctx.Done():
			return
		}
	}
}
