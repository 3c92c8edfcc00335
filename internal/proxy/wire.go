// Package proxy implements the vsock proxy data plane of spec.md §4.M/§4.N:
// a connection-per-peer TCP<->vsock splice, in direct and transparent
// (original-destination-preserving) variants.
package proxy

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// ErrProtocolViolation is returned when the leading family byte of a
// transparent header is anything other than 4 or 6 (spec.md §6).
var ErrProtocolViolation = errors.New("proxy: invalid header family byte")

// WriteHeader writes the framed original-destination header spec.md §6
// defines: family (u8) then address (u32 or u128 LE) then port (u16 LE).
func WriteHeader(w io.Writer, addr *net.TCPAddr) error {
	ip4 := addr.IP.To4()
	if ip4 != nil {
		buf := make([]byte, 1+4+2)
		buf[0] = 4
		copy(buf[1:5], reverseBytes(ip4))
		binary.LittleEndian.PutUint16(buf[5:7], uint16(addr.Port))
		_, err := w.Write(buf)
		return err
	}

	ip6 := addr.IP.To16()
	if ip6 == nil {
		return ErrProtocolViolation
	}
	buf := make([]byte, 1+16+2)
	buf[0] = 6
	copy(buf[1:17], reverseBytes(ip6))
	binary.LittleEndian.PutUint16(buf[17:19], uint16(addr.Port))
	_, err := w.Write(buf)
	return err
}

// ReadHeader parses the framed header WriteHeader produces. Any leading
// byte other than 4 or 6 is a protocol violation per spec.md §6 and
// terminates the connection (the caller is expected to close it).
func ReadHeader(r io.Reader) (*net.TCPAddr, error) {
	var family [1]byte
	if _, err := io.ReadFull(r, family[:]); err != nil {
		return nil, err
	}

	switch family[0] {
	case 4:
		buf := make([]byte, 4+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		ip := net.IP(reverseBytes(buf[0:4]))
		port := binary.LittleEndian.Uint16(buf[4:6])
		return &net.TCPAddr{IP: ip, Port: int(port)}, nil
	case 6:
		buf := make([]byte, 16+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		ip := net.IP(reverseBytes(buf[0:16]))
		port := binary.LittleEndian.Uint16(buf[16:18])
		return &net.TCPAddr{IP: ip, Port: int(port)}, nil
	default:
		return nil, ErrProtocolViolation
	}
}

// reverseBytes returns a little-endian-ordered address's bytes in
// network (big-endian) order, or vice versa: the transform is its own
// inverse, matching the u32_LE/u128_LE encoding of an address whose
// natural (net.IP) representation is big-endian.
func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
