// Command fs-observer wires components A-G of enclave-trust's trust plane:
// it watches a file tree, hashes stable files, and mirrors digests into the
// fs_hashes JetStream KV bucket (spec.md §4.A-§4.G).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sentient-agi/enclave-trust/internal/filetable"
	"github.com/sentient-agi/enclave-trust/internal/fsevents"
	"github.com/sentient-agi/enclave-trust/internal/hashpool"
	"github.com/sentient-agi/enclave-trust/internal/hashstore"
	"github.com/sentient-agi/enclave-trust/internal/ignore"
	"github.com/sentient-agi/enclave-trust/internal/kv"
	"github.com/sentient-agi/enclave-trust/internal/logging"
	"github.com/sentient-agi/enclave-trust/internal/pathutil"
	"github.com/sentient-agi/enclave-trust/internal/watcher"
)

func main() {
	root := flag.String("root", ".", "watch root directory")
	ignoreFile := flag.String("ignore-file", "", "path to a newline-separated glob ignore file")
	natsURL := flag.String("nats-url", "nats://127.0.0.1:4222", "JetStream server URL")
	hashBucket := flag.String("hash-bucket", kv.DefaultHashBucket, "hash KV bucket name")
	poolSize := flag.Int("hash-workers", runtime.NumCPU(), "bounded hash worker pool size")
	debounce := flag.Duration("debounce", time.Second, "write-close debounce window")
	dev := flag.Bool("dev", false, "use the development log encoder")
	flag.Parse()

	logger, err := logging.New("fs-observer", *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fs-observer: failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	if err := run(ctx, *root, *ignoreFile, *natsURL, *hashBucket, *poolSize, *debounce, logger); err != nil {
		logger.Errorw("fatal startup error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, root, ignoreFile, natsURL, hashBucket string, poolSize int, debounce time.Duration, logger *zap.SugaredLogger) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	if err := pathutil.SetRoot(absRoot); err != nil {
		return fmt.Errorf("set watch root: %w", err)
	}

	matcher := ignore.New(nil)
	if ignoreFile != "" {
		matcher, err = ignore.Load(ignoreFile)
		if err != nil {
			return fmt.Errorf("load ignore file: %w", err)
		}
	}

	bus, err := kv.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer bus.Close()

	mirror, err := kv.NewHashMirror(bus, hashBucket)
	if err != nil {
		return fmt.Errorf("open hash bucket: %w", err)
	}

	store := hashstore.New(mirror, func(op, path string, err error) {
		logger.Warnw("hash mirror operation failed", "op", op, "path", path, "err", err)
	})
	table := filetable.New()
	pool := hashpool.New(poolSize)

	classifier := &fsevents.Classifier{
		Table:  table,
		Store:  store,
		Pool:   pool,
		Ignore: matcher,
		IsDir: func(path string) bool {
			info, err := os.Stat(filepath.Join(absRoot, path))
			return err == nil && info.IsDir()
		},
		Walk: func(dirPath string) ([]string, error) {
			return walkFiles(absRoot, dirPath)
		},
		Resolve: func(path string) string {
			return filepath.Join(absRoot, path)
		},
		Logger: logger,
	}

	sup, err := watcher.New(absRoot, debounce, func(p string) (string, error) {
		return pathutil.Normalize(p)
	}, logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer sup.Close()

	logger.Infow("fs-observer starting", "root", absRoot, "hash_bucket", hashBucket, "hash_workers", poolSize)

	return sup.Run(ctx, func(e fsevents.Event) {
		classifier.Handle(ctx, e)
	})
}

func walkFiles(absRoot, dirPath string) ([]string, error) {
	full := filepath.Join(absRoot, dirPath)
	var out []string
	err := filepath.WalkDir(full, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}
