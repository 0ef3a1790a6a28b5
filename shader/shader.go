// Package shader loads SPIR-V shader binaries and watches them for changes.
package shader

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
)

// Magic is the first word of every SPIR-V module.
const Magic uint32 = 0x07230203

var ErrInvalidSPIRV = errors.New("invalid SPIR-V")

// Load reads a SPIR-V module from path and checks its framing.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load shader")
	}
	if err := Validate(data); err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return data, nil
}

// Validate checks that data is a non-empty sequence of 32-bit words starting
// with the SPIR-V magic number in either byte order.
func Validate(data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(ErrInvalidSPIRV, "empty module")
	}
	if len(data)%4 != 0 {
		return errors.Wrapf(ErrInvalidSPIRV, "size %d is not a multiple of 4", len(data))
	}
	le := binary.LittleEndian.Uint32(data)
	be := binary.BigEndian.Uint32(data)
	if le != Magic && be != Magic {
		return errors.Wrapf(ErrInvalidSPIRV, "bad magic 0x%08x", le)
	}
	return nil
}

// Words reinterprets validated SPIR-V bytes as the uint32 code words
// vkCreateShaderModule expects, without copying.
func Words(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
