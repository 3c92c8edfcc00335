//go:build linux

package proxy

import (
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// soOriginalDst is Linux's netfilter-defined SO_ORIGINAL_DST value; it has
// no golang.org/x/sys/unix constant since it is not a generic socket
// option.
const soOriginalDst = 80

// OriginalDestination retrieves the pre-NAT destination address of a TCP
// connection redirected by an iptables REDIRECT/TPROXY rule (spec.md
// §4.N), grounded in original_source/pf-proxy/src/addr_info.rs's
// so_original_dst/mk_addr.
func OriginalDestination(conn net.Conn) (*net.TCPAddr, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("proxy: original destination requires a TCP connection")
	}

	sc, err := tc.SyscallConn()
	if err != nil {
		return nil, err
	}

	var addr *net.TCPAddr
	var sockErr error
	ctrlErr := sc.Control(func(fd uintptr) {
		addr, sockErr = getOriginalDst(int(fd))
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}
	return addr, sockErr
}

func getOriginalDst(fd int) (*net.TCPAddr, error) {
	var raw unix.RawSockaddrAny
	size := uint32(unsafe.Sizeof(raw))
	_, _, errno := unix.Syscall6(
		unix.SYS_GETSOCKOPT,
		uintptr(fd),
		uintptr(unix.SOL_IP),
		uintptr(soOriginalDst),
		uintptr(unsafe.Pointer(&raw)),
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if errno != 0 {
		return nil, errno
	}

	switch raw.Addr.Family {
	case unix.AF_INET:
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(&raw))
		ip := net.IPv4(sa.Addr[0], sa.Addr[1], sa.Addr[2], sa.Addr[3])
		return &net.TCPAddr{IP: ip, Port: ntohs(sa.Port)}, nil
	case unix.AF_INET6:
		sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(&raw))
		ip := make(net.IP, 16)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: ntohs(sa.Port)}, nil
	default:
		return nil, fmt.Errorf("proxy: unsupported original destination address family %d", raw.Addr.Family)
	}
}

// ntohs converts a raw sockaddr port field, stored on the wire in network
// (big-endian) byte order, to a host int on this little-endian target.
func ntohs(port uint16) int {
	return int(port>>8) | int(port<<8&0xff00)
}
