package credential

import (
	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// maxCapabilityRules bounds the rule list carried by one capability.
const maxCapabilityRules = 64

// Capability grants its holder an ordered list of filter rules on one
// network, identified by a 32-bit id unique within that network. It is
// issued to a member and signed by the controller; transfers between
// members re-sign the same rule list for the new holder.
type Capability struct {
	NetworkID uint64
	Timestamp int64
	ID        uint32
	Rules     []Rule
	IssuedTo  types.Address
	SignedBy  types.Address
	Signature Signature
}

// NewCapability returns an unsigned capability.
func NewCapability(networkID uint64, timestamp int64, issuedTo types.Address, id uint32, rules []Rule) Capability {
	return Capability{
		NetworkID: networkID,
		Timestamp: timestamp,
		ID:        id,
		Rules:     rules,
		IssuedTo:  issuedTo,
	}
}

// Encode appends the serialized capability to out.
func (c *Capability) Encode(out []byte, forSign bool) []byte {
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	out = wire.AppendUint64(out, c.NetworkID)
	out = wire.AppendUint64(out, uint64(c.Timestamp))
	out = wire.AppendUint32(out, c.ID)
	ruleBlob := AppendRules(nil, c.Rules)
	out = wire.AppendUint16(out, uint16(len(ruleBlob)))
	out = append(out, ruleBlob...)
	out = wire.AppendAddress(out, c.IssuedTo)
	out = wire.AppendAddress(out, c.SignedBy)
	out = appendTail(out, &c.Signature, forSign)
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	return out
}

// Decode parses one serialized capability from the front of data and
// returns the remainder. On error the capability is zeroed.
func (c *Capability) Decode(data []byte) (rest []byte, err error) {
	var tmp Capability
	var ts uint64
	var ruleLen uint16
	if !wire.ChopUint64(&tmp.NetworkID, &data) ||
		!wire.ChopUint64(&ts, &data) ||
		!wire.ChopUint32(&tmp.ID, &data) ||
		!wire.ChopUint16(&ruleLen, &data) {
		*c = Capability{}
		return nil, types.ErrDecode
	}
	tmp.Timestamp = int64(ts)
	var ruleBlob []byte
	if !wire.ChopBytes(&ruleBlob, &data, int(ruleLen)) {
		*c = Capability{}
		return nil, types.ErrDecode
	}
	if tmp.Rules, err = DecodeRules(ruleBlob, maxCapabilityRules); err != nil {
		*c = Capability{}
		return nil, err
	}
	if !wire.ChopAddress(&tmp.IssuedTo, &data) ||
		!wire.ChopAddress(&tmp.SignedBy, &data) {
		*c = Capability{}
		return nil, types.ErrDecode
	}
	if err := chopTail(&tmp.Signature, &data); err != nil {
		*c = Capability{}
		return nil, err
	}
	*c = tmp
	return data, nil
}

// Sign signs this capability as signer, which must hold a private key.
func (c *Capability) Sign(signer Identity) bool {
	if !signer.HasPrivate() {
		return false
	}
	c.SignedBy = signer.Address
	sig := signer.Sign(c.Encode(nil, true))
	copy(c.Signature[:], sig)
	return true
}

// Verify checks that this capability was signed by its network's controller.
func (c *Capability) Verify(src IdentitySource) Result {
	return verifyWith(src, c.NetworkID, c.SignedBy, func() []byte {
		return c.Encode(nil, true)
	}, &c.Signature)
}
