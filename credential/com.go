package credential

import (
	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// Reserved qualifier ids present in every certificate of membership.
const (
	comQualifierTimestamp = 0
	comQualifierNetworkID = 1
	comQualifierIssuedTo  = 2
)

// informationalMaxDelta marks a qualifier that never fails agreement.
const informationalMaxDelta = ^uint64(0)

// maxCOMQualifiers bounds the qualifier table of one certificate.
const maxCOMQualifiers = 8

// Qualifier is one dimension of membership agreement: an id, the value the
// controller asserted for this member, and the tolerance within which two
// members' values must agree.
type Qualifier struct {
	ID       uint64
	Value    uint64
	MaxDelta uint64
}

// CertificateOfMembership is issued by a network's controller to assert a
// member's standing. Two members are in agreement when, for every qualifier
// id both certificates publish, the values agree within the tolerance.
// The timestamp, network id and member address are themselves qualifiers.
type CertificateOfMembership struct {
	Qualifiers []Qualifier
	SignedBy   types.Address
	Signature  Signature
}

// NewCertificateOfMembership builds an unsigned certificate with the three
// reserved qualifiers filled in.
func NewCertificateOfMembership(networkID uint64, timestamp int64, timestampMaxDelta uint64, issuedTo types.Address) CertificateOfMembership {
	return CertificateOfMembership{
		Qualifiers: []Qualifier{
			{ID: comQualifierTimestamp, Value: uint64(timestamp), MaxDelta: timestampMaxDelta},
			{ID: comQualifierNetworkID, Value: networkID, MaxDelta: 0},
			{ID: comQualifierIssuedTo, Value: uint64(issuedTo), MaxDelta: informationalMaxDelta},
		},
	}
}

func (c *CertificateOfMembership) qualifier(id uint64) (uint64, bool) {
	for i := range c.Qualifiers {
		if c.Qualifiers[i].ID == id {
			return c.Qualifiers[i].Value, true
		}
	}
	return 0, false
}

// NetworkID returns the network this certificate belongs to, or 0.
func (c *CertificateOfMembership) NetworkID() uint64 {
	v, _ := c.qualifier(comQualifierNetworkID)
	return v
}

// Timestamp returns the controller-side issue time in milliseconds.
func (c *CertificateOfMembership) Timestamp() int64 {
	v, _ := c.qualifier(comQualifierTimestamp)
	return int64(v)
}

// IssuedTo returns the member address this certificate was issued to.
func (c *CertificateOfMembership) IssuedTo() types.Address {
	v, _ := c.qualifier(comQualifierIssuedTo)
	return types.NewAddress(v)
}

// IsZero is true for an empty certificate.
func (c *CertificateOfMembership) IsZero() bool {
	return len(c.Qualifiers) == 0
}

// AgreesWith compares the two certificates over the qualifier ids both
// publish, using this side's tolerance for each.
func (c *CertificateOfMembership) AgreesWith(other *CertificateOfMembership) bool {
	if c.IsZero() || other.IsZero() {
		return false
	}
	for i := range c.Qualifiers {
		q := &c.Qualifiers[i]
		ov, ok := other.qualifier(q.ID)
		if !ok {
			continue
		}
		if q.MaxDelta == informationalMaxDelta {
			continue
		}
		delta := q.Value - ov
		if ov > q.Value {
			delta = ov - q.Value
		}
		if delta > q.MaxDelta {
			return false
		}
	}
	return true
}

// Encode appends the serialized certificate to out.
func (c *CertificateOfMembership) Encode(out []byte, forSign bool) []byte {
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	out = wire.AppendUint16(out, uint16(len(c.Qualifiers)))
	for i := range c.Qualifiers {
		out = wire.AppendUint64(out, c.Qualifiers[i].ID)
		out = wire.AppendUint64(out, c.Qualifiers[i].Value)
		out = wire.AppendUint64(out, c.Qualifiers[i].MaxDelta)
	}
	out = wire.AppendAddress(out, c.SignedBy)
	out = appendTail(out, &c.Signature, forSign)
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	return out
}

// Decode parses one serialized certificate from the front of data and
// returns the remainder. On error the certificate is zeroed.
func (c *CertificateOfMembership) Decode(data []byte) (rest []byte, err error) {
	var tmp CertificateOfMembership
	var count uint16
	if !wire.ChopUint16(&count, &data) {
		*c = CertificateOfMembership{}
		return nil, types.ErrDecode
	}
	for i := 0; i < int(count); i++ {
		var q Qualifier
		if !wire.ChopUint64(&q.ID, &data) ||
			!wire.ChopUint64(&q.Value, &data) ||
			!wire.ChopUint64(&q.MaxDelta, &data) {
			*c = CertificateOfMembership{}
			return nil, types.ErrDecode
		}
		if len(tmp.Qualifiers) < maxCOMQualifiers {
			tmp.Qualifiers = append(tmp.Qualifiers, q)
		}
	}
	if !wire.ChopAddress(&tmp.SignedBy, &data) {
		*c = CertificateOfMembership{}
		return nil, types.ErrDecode
	}
	if err := chopTail(&tmp.Signature, &data); err != nil {
		*c = CertificateOfMembership{}
		return nil, err
	}
	*c = tmp
	return data, nil
}

// Sign signs this certificate as signer, which must hold a private key.
func (c *CertificateOfMembership) Sign(signer Identity) bool {
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
func (c *CertificateOfMembership) Verify(src IdentitySource) Result {
	return verifyWith(src, c.NetworkID(), c.SignedBy, func() []byte {
		return c.Encode(nil, true)
	}, &c.Signature)
}
