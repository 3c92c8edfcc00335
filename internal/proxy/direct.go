package proxy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"
)

// VsockAddr identifies a vsock endpoint by context ID and port.
type VsockAddr struct {
	CID  uint32
	Port uint32
}

func (a VsockAddr) String() string {
	return fmt.Sprintf("%d:%d", a.CID, a.Port)
}

// dialBackoffAttempts bounds the exponential-backoff retry spec.md §4.M
// describes for the direct proxy's outbound vsock connect: delays grow as
// 2^i seconds across this many attempts before the caller gives up.
const dialBackoffAttempts = 5

// DialVsockWithBackoff connects to addr, making up to dialBackoffAttempts
// attempts and waiting 2^i seconds after each failed attempt i, the last
// one included (spec.md §4.M, Scenario 6). It gives up early if ctx is
// canceled.
func DialVsockWithBackoff(ctx context.Context, addr VsockAddr, logger *zap.SugaredLogger) (*vsock.Conn, error) {
	var lastErr error
	for i := 0; i < dialBackoffAttempts; i++ {
		conn, err := vsock.Dial(addr.CID, addr.Port, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if logger != nil {
			logger.Debugw("vsock connect attempt failed", "addr", addr.String(), "attempt", i, "err", err)
		}

		delay := time.Duration(1<<uint(i)) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("proxy: connect to vsock %s: %w", addr, lastErr)
}

// Direct runs the ip-to-vsock direct proxy of spec.md §4.M: it accepts TCP
// connections on listenAddr and splices each to a freshly dialed
// connection on upstream, retrying the outbound dial with backoff. A failed
// upstream dial closes only that connection and never stops the loop;
// Direct returns when Accept fails or ctx is canceled.
func Direct(ctx context.Context, listener net.Listener, upstream VsockAddr, logger *zap.SugaredLogger) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		inbound, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go handleDirect(ctx, inbound, upstream, logger)
	}
}

func handleDirect(ctx context.Context, inbound net.Conn, upstream VsockAddr, logger *zap.SugaredLogger) {
	outbound, err := DialVsockWithBackoff(ctx, upstream, logger)
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to connect to vsock upstream", "upstream", upstream.String(), "err", err)
		}
		_ = inbound.Close()
		return
	}
	Splice(logger, inbound, outbound)
}

// VsockToIPDirect runs the counterpart host-side proxy of spec.md §4.M:
// it accepts vsock connections from the enclave and splices each to a
// freshly dialed TCP connection on upstream. Grounded in
// original_source/pf-proxy/src/vsock_to_ip.rs.
func VsockToIPDirect(ctx context.Context, listener *vsock.Listener, upstream string, logger *zap.SugaredLogger) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		inbound, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go handleVsockToIPDirect(inbound, upstream, logger)
	}
}

func handleVsockToIPDirect(inbound net.Conn, upstream string, logger *zap.SugaredLogger) {
	outbound, err := net.Dial("tcp", upstream)
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to connect to ip upstream", "upstream", upstream, "err", err)
		}
		_ = inbound.Close()
		return
	}
	Splice(logger, inbound, outbound)
}
