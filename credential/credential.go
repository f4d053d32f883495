// Package credential implements the signed credentials that govern network
// membership: certificates of membership and ownership, capabilities, and
// tags. All four share a common serialized framing and are verified against
// the issuing network controller's identity.
package credential

import (
	"crypto/ed25519"

	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// signingSentinel frames the for-signing serialization of every credential.
// It is part of the signed bytes; changing it breaks all existing signatures.
const signingSentinel uint64 = 0x7f7f7f7f7f7f7f7f

// signatureMarkerEd25519 identifies the signature algorithm in the
// serialized signature block.
const signatureMarkerEd25519 uint8 = 0x01

// SignatureSize is the length of a credential signature.
const SignatureSize = ed25519.SignatureSize

// Signature holds a credential signature.
type Signature [SignatureSize]byte

// Result is the outcome of a credential verification.
type Result int

const (
	// ResultOK means the signature checked out.
	ResultOK Result = iota
	// ResultWaitingForIdentity means the signer's identity is not cached
	// yet; a WHOIS hint was issued and the caller should retry later.
	ResultWaitingForIdentity
	// ResultBad means the credential is malformed, signed by the wrong
	// party, or carries an invalid signature.
	ResultBad
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultWaitingForIdentity:
		return "waiting for identity"
	}
	return "bad"
}

// Credential is the behaviour the four credential types share.
type Credential interface {
	// Verify checks the issuer and signature against src.
	Verify(src IdentitySource) Result
}

// IdentityStore resolves addresses to cached identities. Lookups must not
// block.
type IdentityStore interface {
	GetIdentity(types.Address) (Identity, bool)
}

// IdentitySource is an IdentityStore that can also be hinted to go fetch an
// identity it does not have. RequestWhois is fire and forget.
type IdentitySource interface {
	IdentityStore
	RequestWhois(types.Address)
}

// ControllerFor returns the address of the controller responsible for a
// network. Every credential of that network must be signed by it.
func ControllerFor(networkID uint64) types.Address {
	return types.NewAddress(networkID >> 24)
}

// appendTail writes the signature block (omitted in for-signing mode) and
// the empty extension field block.
func appendTail(out []byte, sig *Signature, forSign bool) []byte {
	if !forSign {
		out = wire.AppendUint8(out, signatureMarkerEd25519)
		out = wire.AppendUint16(out, uint16(len(sig)))
		out = append(out, sig[:]...)
	}
	out = wire.AppendUint16(out, 0) // length of additional fields
	return out
}

// chopTail reads the signature block and skips the extension fields. An
// unrecognized signature marker skips a length-prefixed blob instead,
// leaving sig zeroed.
func chopTail(sig *Signature, data *[]byte) error {
	var marker uint8
	if !wire.ChopUint8(&marker, data) {
		return types.ErrDecode
	}
	var sigLen uint16
	if !wire.ChopUint16(&sigLen, data) {
		return types.ErrDecode
	}
	if marker == signatureMarkerEd25519 {
		if int(sigLen) != len(sig) {
			return types.ErrDecode
		}
		if !wire.ChopSlice(sig[:], data) {
			return types.ErrDecode
		}
	} else {
		var skip []byte
		if !wire.ChopBytes(&skip, data, int(sigLen)) {
			return types.ErrDecode
		}
	}
	var extLen uint16
	if !wire.ChopUint16(&extLen, data) {
		return types.ErrDecode
	}
	var skip []byte
	if !wire.ChopBytes(&skip, data, int(extLen)) {
		return types.ErrDecode
	}
	return nil
}

// verifyWith implements the verification flow all credentials share: the
// signer must be the network's controller, the signer's identity must be
// available (otherwise a WHOIS hint is issued), and the stored signature
// must cover the for-signing serialization.
func verifyWith(src IdentitySource, networkID uint64, signedBy types.Address, forSignBytes func() []byte, sig *Signature) Result {
	if signedBy == 0 || signedBy != ControllerFor(networkID) {
		return ResultBad
	}
	id, ok := src.GetIdentity(signedBy)
	if !ok {
		src.RequestWhois(signedBy)
		return ResultWaitingForIdentity
	}
	if id.Verify(forSignBytes(), sig[:]) {
		return ResultOK
	}
	return ResultBad
}
