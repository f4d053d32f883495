package credential

import (
	"net"

	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// Thing is the kind of resource a certificate of ownership covers.
type Thing uint8

const (
	ThingNull Thing = 0
	ThingMAC  Thing = 1
	ThingIPv4 Thing = 2
	ThingIPv6 Thing = 3
)

// maxOwnedThings bounds the thing table of one certificate.
const maxOwnedThings = 16

// OwnedThing is one (type, value) entry in a certificate of ownership.
type OwnedThing struct {
	Type  Thing
	Value []byte
}

// CertificateOfOwnership is a controller-signed assertion that a member
// owns a list of layer 2/3 resources (MACs, IPs) on a network.
type CertificateOfOwnership struct {
	NetworkID uint64
	Timestamp int64
	Flags     uint64
	ID        uint32
	Things    []OwnedThing
	IssuedTo  types.Address
	SignedBy  types.Address
	Signature Signature
}

// NewCertificateOfOwnership returns an unsigned certificate with an empty
// thing table.
func NewCertificateOfOwnership(networkID uint64, timestamp int64, issuedTo types.Address, id uint32) CertificateOfOwnership {
	return CertificateOfOwnership{
		NetworkID: networkID,
		Timestamp: timestamp,
		ID:        id,
		IssuedTo:  issuedTo,
	}
}

// AddThing appends an entry to the thing table. The value bytes are copied.
func (c *CertificateOfOwnership) AddThing(t Thing, value []byte) bool {
	if len(c.Things) >= maxOwnedThings || len(value) > 255 {
		return false
	}
	c.Things = append(c.Things, OwnedThing{Type: t, Value: append([]byte(nil), value...)})
	return true
}

// AddIP adds an IPv4 or IPv6 address to the thing table.
func (c *CertificateOfOwnership) AddIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return c.AddThing(ThingIPv4, ip4)
	}
	if ip16 := ip.To16(); ip16 != nil {
		return c.AddThing(ThingIPv6, ip16)
	}
	return false
}

// Owns reports whether any entry matches the type and the exact value
// bytes over the full declared length. The first match wins.
func (c *CertificateOfOwnership) Owns(t Thing, value []byte) bool {
	for i := range c.Things {
		if c.Things[i].Type != t || len(c.Things[i].Value) != len(value) {
			continue
		}
		match := true
		for k := range value {
			if c.Things[i].Value[k] != value[k] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// OwnsIP is Owns for an IP address.
func (c *CertificateOfOwnership) OwnsIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return c.Owns(ThingIPv4, ip4)
	}
	if ip16 := ip.To16(); ip16 != nil {
		return c.Owns(ThingIPv6, ip16)
	}
	return false
}

// Encode appends the serialized certificate to out.
func (c *CertificateOfOwnership) Encode(out []byte, forSign bool) []byte {
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	out = wire.AppendUint64(out, c.NetworkID)
	out = wire.AppendUint64(out, uint64(c.Timestamp))
	out = wire.AppendUint64(out, c.Flags)
	out = wire.AppendUint32(out, c.ID)
	out = wire.AppendUint16(out, uint16(len(c.Things)))
	for i := range c.Things {
		out = wire.AppendUint8(out, uint8(c.Things[i].Type))
		out = wire.AppendUint8(out, uint8(len(c.Things[i].Value)))
		out = append(out, c.Things[i].Value...)
	}
	out = wire.AppendAddress(out, c.IssuedTo)
	out = wire.AppendAddress(out, c.SignedBy)
	out = appendTail(out, &c.Signature, forSign)
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	return out
}

// Decode parses one serialized certificate from the front of data and
// returns the remainder. On error the certificate is zeroed.
func (c *CertificateOfOwnership) Decode(data []byte) (rest []byte, err error) {
	var tmp CertificateOfOwnership
	var ts uint64
	var count uint16
	if !wire.ChopUint64(&tmp.NetworkID, &data) ||
		!wire.ChopUint64(&ts, &data) ||
		!wire.ChopUint64(&tmp.Flags, &data) ||
		!wire.ChopUint32(&tmp.ID, &data) ||
		!wire.ChopUint16(&count, &data) {
		*c = CertificateOfOwnership{}
		return nil, types.ErrDecode
	}
	tmp.Timestamp = int64(ts)
	for i := 0; i < int(count); i++ {
		var t, vl uint8
		if !wire.ChopUint8(&t, &data) || !wire.ChopUint8(&vl, &data) {
			*c = CertificateOfOwnership{}
			return nil, types.ErrDecode
		}
		var value []byte
		if !wire.ChopBytes(&value, &data, int(vl)) {
			*c = CertificateOfOwnership{}
			return nil, types.ErrDecode
		}
		if len(tmp.Things) < maxOwnedThings {
			tmp.Things = append(tmp.Things, OwnedThing{Type: Thing(t), Value: value})
		}
	}
	if !wire.ChopAddress(&tmp.IssuedTo, &data) ||
		!wire.ChopAddress(&tmp.SignedBy, &data) {
		*c = CertificateOfOwnership{}
		return nil, types.ErrDecode
	}
	if err := chopTail(&tmp.Signature, &data); err != nil {
		*c = CertificateOfOwnership{}
		return nil, err
	}
	*c = tmp
	return data, nil
}

// Sign signs this certificate as signer, which must hold a private key.
func (c *CertificateOfOwnership) Sign(signer Identity) bool {
	if !signer.HasPrivate() {
		return false
	}
	c.SignedBy = signer.Address
	sig := signer.Sign(c.Encode(nil, true))
	copy(c.Signature[:], sig)
	return true
}

// Verify checks that this certificate was signed by its network's
// controller.
func (c *CertificateOfOwnership) Verify(src IdentitySource) Result {
	return verifyWith(src, c.NetworkID, c.SignedBy, func() []byte {
		return c.Encode(nil, true)
	}, &c.Signature)
}
