//go:build !linux

package hsm

import "errors"

// ErrNSMUnsupported is returned by OpenNSM on platforms without the Linux
// NSM ioctl ABI; OpenNSMFd returns a nil Device there. Real Nitro
// enclaves always run Linux; this stub only exists so config resolution
// compiles and fails clearly on a
// developer's non-Linux workstation, which should use NewDebugDevice
// instead.
var ErrNSMUnsupported = errors.New("hsm: /dev/nsm ioctl device is only supported on Linux")

func OpenNSM(path string) (Device, error) {
	return nil, ErrNSMUnsupported
}

func OpenNSMFd(fd int) Device {
	return nil
}
