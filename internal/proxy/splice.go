package proxy

import (
	"io"
	"net"

	"go.uber.org/zap"
)

// halfCloser is satisfied by both *net.TCPConn and the vsock connection
// type: after a copy direction drains, its write half is shut down so the
// peer observes EOF without tearing down the whole duplex connection.
type halfCloser interface {
	CloseWrite() error
}

// Splice joins two connections bidirectionally, as the original's
// tokio::try_join! of client_to_server/server_to_client does: each
// direction is copied on its own goroutine, and on completion the
// destination's write half is shut down so the peer sees EOF (a
// destination without CloseWrite is closed outright). Splice returns once
// both directions have finished.
func Splice(logger *zap.SugaredLogger, a, b net.Conn) {
	done := make(chan struct{}, 2)

	go func() {
		copyHalf(logger, b, a, "a->b")
		done <- struct{}{}
	}()
	go func() {
		copyHalf(logger, a, b, "b->a")
		done <- struct{}{}
	}()

	<-done
	<-done
}

func copyHalf(logger *zap.SugaredLogger, dst, src net.Conn, direction string) {
	n, err := io.Copy(dst, src)
	if err != nil && logger != nil {
		logger.Debugw("proxy copy error", "direction", direction, "bytes", n, "err", err)
	}
	if hc, ok := dst.(halfCloser); ok {
		_ = hc.CloseWrite()
	} else {
		_ = dst.Close()
	}
}
