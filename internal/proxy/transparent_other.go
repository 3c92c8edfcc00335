//go:build !linux

package proxy

import (
	"errors"
	"net"
)

// OriginalDestination is unsupported outside Linux: SO_ORIGINAL_DST is a
// netfilter extension with no equivalent elsewhere, matching
// original_source/pf-proxy/src/addr_info.rs's non-Linux get_original_dst,
// which always returns None.
func OriginalDestination(conn net.Conn) (*net.TCPAddr, error) {
	return nil, errors.New("proxy: SO_ORIGINAL_DST is only supported on Linux")
}
