package credential

import (
	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// Tag is a network-scoped (id, value) pair attached to a member.
// Capabilities group rules, while tags group members subject to those
// rules: tag values can be matched in rules, so a tag states who a member
// is while a capability states what it may do. Tags are signed only by the
// controller and are never transferable.
type Tag struct {
	NetworkID uint64
	Timestamp int64
	ID        uint32
	Value     uint32
	IssuedTo  types.Address
	SignedBy  types.Address
	Signature Signature
}

// NewTag returns an unsigned tag.
func NewTag(networkID uint64, timestamp int64, issuedTo types.Address, id, value uint32) Tag {
	return Tag{
		NetworkID: networkID,
		Timestamp: timestamp,
		ID:        id,
		Value:     value,
		IssuedTo:  issuedTo,
	}
}

// Encode appends the serialized tag to out. In for-signing mode the bytes
// are wrapped in the signing sentinel and the signature block is omitted.
func (t *Tag) Encode(out []byte, forSign bool) []byte {
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	out = wire.AppendUint64(out, t.NetworkID)
	out = wire.AppendUint64(out, uint64(t.Timestamp))
	out = wire.AppendUint32(out, t.ID)
	out = wire.AppendUint32(out, t.Value)
	out = wire.AppendAddress(out, t.IssuedTo)
	out = wire.AppendAddress(out, t.SignedBy)
	out = appendTail(out, &t.Signature, forSign)
	if forSign {
		out = wire.AppendUint64(out, signingSentinel)
	}
	return out
}

// Decode parses one serialized tag from the front of data and returns the
// remainder. On error the tag is zeroed.
func (t *Tag) Decode(data []byte) (rest []byte, err error) {
	var tmp Tag
	var ts uint64
	if !wire.ChopUint64(&tmp.NetworkID, &data) ||
		!wire.ChopUint64(&ts, &data) ||
		!wire.ChopUint32(&tmp.ID, &data) ||
		!wire.ChopUint32(&tmp.Value, &data) ||
		!wire.ChopAddress(&tmp.IssuedTo, &data) ||
		!wire.ChopAddress(&tmp.SignedBy, &data) {
		*t = Tag{}
		return nil, types.ErrDecode
	}
	tmp.Timestamp = int64(ts)
	if err := chopTail(&tmp.Signature, &data); err != nil {
		*t = Tag{}
		return nil, err
	}
	*t = tmp
	return data, nil
}

// Sign signs this tag as signer, which must hold a private key.
func (t *Tag) Sign(signer Identity) bool {
	if !signer.HasPrivate() {
		return false
	}
	t.SignedBy = signer.Address
	sig := signer.Sign(t.Encode(nil, true))
	copy(t.Signature[:], sig)
	return true
}

// Verify checks that this tag was signed by its network's controller.
func (t *Tag) Verify(src IdentitySource) Result {
	return verifyWith(src, t.NetworkID, t.SignedBy, func() []byte {
		return t.Encode(nil, true)
	}, &t.Signature)
}
