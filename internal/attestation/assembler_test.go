package attestation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentient-agi/enclave-trust/internal/hsm"
	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

type fakePublisher struct {
	mu   sync.Mutex
	recs []Record
}

func (p *fakePublisher) Publish(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

func newTestAssembler(t *testing.T) (*Assembler, *fakePublisher) {
	t.Helper()
	key, err := vrf.GenerateKey(vrf.P256SHA256TAI)
	require.NoError(t, err)
	dev, err := hsm.NewDebugDevice("debug")
	require.NoError(t, err)
	pub := &fakePublisher{}
	return New(key, dev, pub, nil), pub
}

func TestAssembleProducesOneRecordPerPath(t *testing.T) {
	a, pub := newTestAssembler(t)
	ctx := context.Background()

	a.Assemble(ctx, "a.txt", []byte("digest-a"))
	a.Assemble(ctx, "b.txt", []byte("digest-b"))

	require.Equal(t, 2, a.Len())
	require.Equal(t, 2, pub.count())

	rec, ok := a.Get("a.txt")
	require.True(t, ok)
	require.NotEmpty(t, rec.VRFProofHex)
	require.NotEmpty(t, rec.AttDocBytes)
}

func TestAssembleConcurrentDistinctPaths(t *testing.T) {
	a, pub := newTestAssembler(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			a.Assemble(ctx, string(rune('a'+i)), []byte{byte(i)})
		}()
	}
	wg.Wait()

	require.Equal(t, n, a.Len())
	require.Equal(t, n, pub.count())
}
