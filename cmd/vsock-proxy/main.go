// Command vsock-proxy wires components M and N of enclave-trust: the
// direct and transparent TCP<->vsock proxy modes of spec.md §4.M-§4.N.
// Each mode is a subcommand, mirroring the five standalone proxy binaries
// of the original implementation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdlayher/vsock"

	"github.com/sentient-agi/enclave-trust/internal/logging"
	"github.com/sentient-agi/enclave-trust/internal/proxy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	mode := os.Args[1]
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	listenAddr := fs.String("listen", "", "local TCP address to listen on (ip:port)")
	upstreamCID := fs.Uint("upstream-cid", 0, "vsock CID of the upstream peer")
	upstreamPort := fs.Uint("upstream-port", 0, "vsock port of the upstream peer")
	upstreamTCP := fs.String("upstream-tcp", "", "upstream TCP address (host:port)")
	vsockPort := fs.Uint("vsock-port", 0, "local vsock port to listen on")
	dev := fs.Bool("dev", false, "use the development log encoder")
	fs.Parse(os.Args[2:])

	logger, err := logging.New("vsock-proxy", *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vsock-proxy: failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	var runErr error
	switch mode {
	case "ip-to-vsock":
		l, lerr := net.Listen("tcp", *listenAddr)
		if lerr != nil {
			runErr = lerr
			break
		}
		defer l.Close()
		runErr = proxy.Direct(ctx, l, proxy.VsockAddr{CID: uint32(*upstreamCID), Port: uint32(*upstreamPort)}, logger)

	case "ip-to-vsock-transparent":
		l, lerr := net.Listen("tcp", *listenAddr)
		if lerr != nil {
			runErr = lerr
			break
		}
		defer l.Close()
		runErr = proxy.IPToVsockTransparent(ctx, l, proxy.VsockAddr{CID: uint32(*upstreamCID), Port: uint32(*upstreamPort)}, logger)

	case "port-to-vsock-transparent":
		l, lerr := net.Listen("tcp", *listenAddr)
		if lerr != nil {
			runErr = lerr
			break
		}
		defer l.Close()
		runErr = proxy.PortToVsockTransparent(ctx, l, uint32(*upstreamCID), logger)

	case "vsock-to-ip":
		l, lerr := vsock.Listen(uint32(*vsockPort), nil)
		if lerr != nil {
			runErr = lerr
			break
		}
		defer l.Close()
		runErr = proxy.VsockToIPDirect(ctx, l, *upstreamTCP, logger)

	case "vsock-to-ip-transparent":
		l, lerr := vsock.Listen(uint32(*vsockPort), nil)
		if lerr != nil {
			runErr = lerr
			break
		}
		defer l.Close()
		runErr = proxy.VsockToIPTransparent(ctx, l, logger)

	default:
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		logger.Errorw("fatal proxy error", "mode", mode, "err", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vsock-proxy <mode> [flags]

modes:
  ip-to-vsock               -listen ip:port -upstream-cid N -upstream-port N
  ip-to-vsock-transparent   -listen ip:port -upstream-cid N -upstream-port N
  port-to-vsock-transparent -listen ip:port -upstream-cid N
  vsock-to-ip               -vsock-port N -upstream-tcp host:port
  vsock-to-ip-transparent   -vsock-port N`)
}
