package proxy

import (
	"context"
	"net"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"
)

// IPToVsockTransparent runs the host-side half of spec.md §4.N: accept a
// transparently redirected TCP connection, recover its pre-NAT
// destination via OriginalDestination, open a vsock connection to a fixed
// enclave-side endpoint, write the destination as a framed header (see
// wire.go), then splice. Grounded in
// original_source/pf-proxy/src/ip_to_vsock_transparent.rs.
func IPToVsockTransparent(ctx context.Context, listener net.Listener, upstream VsockAddr, logger *zap.SugaredLogger) error {
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
		go handleIPToVsockTransparent(ctx, inbound, upstream, logger)
	}
}

func handleIPToVsockTransparent(ctx context.Context, inbound net.Conn, upstream VsockAddr, logger *zap.SugaredLogger) {
	origDst, err := OriginalDestination(inbound)
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to retrieve original destination", "err", err)
		}
		_ = inbound.Close()
		return
	}

	outbound, err := DialVsockWithBackoff(ctx, upstream, logger)
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to connect to vsock upstream", "upstream", upstream.String(), "err", err)
		}
		_ = inbound.Close()
		return
	}

	if err := WriteHeader(outbound, origDst); err != nil {
		if logger != nil {
			logger.Errorw("failed to write original destination header", "err", err)
		}
		_ = inbound.Close()
		_ = outbound.Close()
		return
	}

	Splice(logger, inbound, outbound)
}

// PortToVsockTransparent runs spec.md §4.N's port-preserving variant:
// the original destination's port (not its address) selects the
// enclave-side vsock port on a fixed CID, with no wire header — the
// enclave is expected to be listening on a vsock port matching the
// service's well-known TCP port. Grounded in
// original_source/pf-proxy/src/transparent_port_to_vsock.rs.
func PortToVsockTransparent(ctx context.Context, listener net.Listener, cid uint32, logger *zap.SugaredLogger) error {
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
		go handlePortToVsockTransparent(ctx, inbound, cid, logger)
	}
}

func handlePortToVsockTransparent(ctx context.Context, inbound net.Conn, cid uint32, logger *zap.SugaredLogger) {
	origDst, err := OriginalDestination(inbound)
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to retrieve original destination", "err", err)
		}
		_ = inbound.Close()
		return
	}

	upstream := VsockAddr{CID: cid, Port: uint32(origDst.Port)}
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

// VsockToIPTransparent runs the enclave-side half of spec.md §4.N: accept
// a vsock connection, parse the leading original-destination header the
// host side wrote, dial that address over IP, and splice. Grounded in
// original_source/pf-proxy/src/vsock_to_ip_transparent.rs.
func VsockToIPTransparent(ctx context.Context, listener *vsock.Listener, logger *zap.SugaredLogger) error {
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
		go handleVsockToIPTransparent(inbound, logger)
	}
}

func handleVsockToIPTransparent(inbound net.Conn, logger *zap.SugaredLogger) {
	target, err := ReadHeader(inbound)
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to read original destination header", "err", err)
		}
		_ = inbound.Close()
		return
	}

	outbound, err := net.Dial("tcp", target.String())
	if err != nil {
		if logger != nil {
			logger.Errorw("failed to connect to original destination", "target", target.String(), "err", err)
		}
		_ = inbound.Close()
		return
	}

	Splice(logger, inbound, outbound)
}
