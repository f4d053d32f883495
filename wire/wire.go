// Package wire implements the append/chop byte codec helpers and the
// bounded Buffer used by the credential and network config serializers.
// All integers are big endian on the wire.
package wire

import (
	"encoding/binary"

	"github.com/weftnet/weft/types"
)

func AppendUint8(out []byte, v uint8) []byte {
	return append(out, v)
}

func AppendUint16(out []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(out, b[:]...)
}

func AppendUint32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func AppendUint64(out []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(out, b[:]...)
}

// AppendAddress appends the low 40 bits of an address as 5 bytes.
func AppendAddress(out []byte, a types.Address) []byte {
	b := a.Bytes()
	return append(out, b[:]...)
}

// AppendInet appends an InetAddress as a family byte, the raw IP bytes for
// that family, and a 16-bit port (or netmask bit count).
func AppendInet(out []byte, a types.InetAddress) []byte {
	switch a.Family {
	case types.FamilyIPv4:
		out = append(out, 0x04)
		out = append(out, a.IP[:4]...)
		out = AppendUint16(out, a.Port)
	case types.FamilyIPv6:
		out = append(out, 0x06)
		out = append(out, a.IP[:]...)
		out = AppendUint16(out, a.Port)
	default:
		out = append(out, 0x00)
	}
	return out
}

func ChopUint8(out *uint8, data *[]byte) bool {
	if len(*data) < 1 {
		return false
	}
	*out, *data = (*data)[0], (*data)[1:]
	return true
}

func ChopUint16(out *uint16, data *[]byte) bool {
	if len(*data) < 2 {
		return false
	}
	*out, *data = binary.BigEndian.Uint16(*data), (*data)[2:]
	return true
}

func ChopUint32(out *uint32, data *[]byte) bool {
	if len(*data) < 4 {
		return false
	}
	*out, *data = binary.BigEndian.Uint32(*data), (*data)[4:]
	return true
}

func ChopUint64(out *uint64, data *[]byte) bool {
	if len(*data) < 8 {
		return false
	}
	*out, *data = binary.BigEndian.Uint64(*data), (*data)[8:]
	return true
}

func ChopAddress(out *types.Address, data *[]byte) bool {
	a, ok := types.AddressFromBytes(*data)
	if !ok {
		return false
	}
	*out, *data = a, (*data)[types.AddressLength:]
	return true
}

func ChopInet(out *types.InetAddress, data *[]byte) bool {
	var fam uint8
	if !ChopUint8(&fam, data) {
		return false
	}
	var tmp types.InetAddress
	switch fam {
	case 0x00:
	case 0x04:
		tmp.Family = types.FamilyIPv4
		if !ChopSlice(tmp.IP[:4], data) || !ChopUint16(&tmp.Port, data) {
			return false
		}
	case 0x06:
		tmp.Family = types.FamilyIPv6
		if !ChopSlice(tmp.IP[:], data) || !ChopUint16(&tmp.Port, data) {
			return false
		}
	default:
		return false
	}
	*out = tmp
	return true
}

// ChopSlice fills out from the front of data, advancing data.
func ChopSlice(out []byte, data *[]byte) bool {
	if len(*data) < len(out) {
		return false
	}
	copy(out, *data)
	*data = (*data)[len(out):]
	return true
}

// ChopBytes appends size bytes from the front of data to out.
func ChopBytes(out *[]byte, data *[]byte, size int) bool {
	if size < 0 || len(*data) < size {
		return false
	}
	*out = append(*out, (*data)[:size]...)
	*data = (*data)[size:]
	return true
}

// At16 decodes an unaligned big-endian uint16 at off.
func At16(b []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[off:]), true
}

// At32 decodes an unaligned big-endian uint32 at off.
func At32(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[off:]), true
}

// At64 decodes an unaligned big-endian uint64 at off.
func At64(b []byte, off int) (uint64, bool) {
	if off < 0 || off+8 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint64(b[off:]), true
}
