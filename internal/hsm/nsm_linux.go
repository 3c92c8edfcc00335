//go:build linux

package hsm

import (
	"os"
	"sync"
	"unsafe"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sys/unix"
)

// nsmIoctlMagic/nsmIoctlRequest match the AWS NSM kernel driver's ioctl
// number: _IOWR(0x0A, 0, struct nsm_request_response).
const (
	nsmIoctlMagic   = 0x0A
	nsmIoctlRequest = 0
)

// nsmRequestResponse mirrors the kernel driver's struct nsm_request_response:
// in/out buffer pointers and lengths for a single CBOR-encoded transaction.
type nsmRequestResponse struct {
	requestLen  uint32
	_           uint32 // padding to pointer alignment
	request     uintptr
	responseLen uint32
	_           uint32
	response    uintptr
}

func nsmIoctlCmd() uintptr {
	// _IOWR('0x0A', 0, struct nsm_request_response) per the NSM driver ABI.
	const size = unsafe.Sizeof(nsmRequestResponse{})
	return (3 << 30) | (nsmIoctlMagic << 8) | nsmIoctlRequest | (uintptr(size) << 16)
}

// nsmDevice drives the real /dev/nsm (or an explicit fd) Linux ioctl
// interface using the CBOR request/response encoding the AWS NSM driver
// expects.
type nsmDevice struct {
	mu   sync.Mutex
	file *os.File
	fd   uintptr
}

// OpenNSM opens the device file at path (the config's "", "nsm" and
// "nsm_dev" values resolve to /dev/nsm) as the NSM device.
func OpenNSM(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &nsmDevice{file: f, fd: f.Fd()}, nil
}

// OpenNSMFd wraps an already-open file descriptor number (the config's
// decimal-integer nsm_fd convention).
func OpenNSMFd(fd int) Device {
	return &nsmDevice{file: os.NewFile(uintptr(fd), "nsm-fd"), fd: uintptr(fd)}
}

func (d *nsmDevice) transact(req interface{}) (map[string]cbor.RawMessage, error) {
	reqBytes, err := cbor.Marshal(req)
	if err != nil {
		return nil, err
	}

	respBuf := make([]byte, 16*1024)
	rr := nsmRequestResponse{
		requestLen:  uint32(len(reqBytes)),
		request:     uintptr(unsafe.Pointer(&reqBytes[0])),
		responseLen: uint32(len(respBuf)),
		response:    uintptr(unsafe.Pointer(&respBuf[0])),
	}

	d.mu.Lock()
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.fd, nsmIoctlCmd(), uintptr(unsafe.Pointer(&rr)))
	d.mu.Unlock()
	if errno != 0 {
		return nil, errno
	}

	var resp map[string]cbor.RawMessage
	if err := cbor.Unmarshal(respBuf[:rr.responseLen], &resp); err != nil {
		return nil, ErrInvalidResponse
	}
	return resp, nil
}

func (d *nsmDevice) Describe() (Description, error) {
	resp, err := d.transact("DescribeNSM")
	if err != nil {
		return Description{}, err
	}
	raw, ok := resp["DescribeNSM"]
	if !ok {
		return Description{}, ErrInvalidResponse
	}
	var desc Description
	if err := cbor.Unmarshal(raw, &desc); err != nil {
		return Description{}, ErrInvalidResponse
	}
	return desc, nil
}

func (d *nsmDevice) RandomOnce() ([]byte, error) {
	resp, err := d.transact("GetRandom")
	if err != nil {
		return nil, err
	}
	raw, ok := resp["GetRandom"]
	if !ok {
		return nil, ErrInvalidResponse
	}
	var body struct {
		Random []byte `cbor:"random"`
	}
	if err := cbor.Unmarshal(raw, &body); err != nil {
		return nil, ErrInvalidResponse
	}
	return body.Random, nil
}

func (d *nsmDevice) Attestation(userData, nonce, publicKey []byte) ([]byte, error) {
	req := map[string]interface{}{
		"Attestation": map[string]interface{}{
			"user_data":  userData,
			"nonce":      nonce,
			"public_key": publicKey,
		},
	}
	resp, err := d.transact(req)
	if err != nil {
		return nil, err
	}
	raw, ok := resp["Attestation"]
	if !ok {
		return nil, ErrInvalidResponse
	}
	var body struct {
		Document []byte `cbor:"document"`
	}
	if err := cbor.Unmarshal(raw, &body); err != nil {
		return nil, ErrInvalidResponse
	}
	if len(body.Document) == 0 {
		return nil, ErrEmptyDocument
	}
	return body.Document, nil
}

func (d *nsmDevice) Close() error {
	return d.file.Close()
}
