package credential

import (
	"crypto/ed25519"
	"crypto/sha512"

	"github.com/weftnet/weft/types"
)

// Identity binds a 40-bit address to an ed25519 key pair. The private key
// is optional; identities learned from the network carry only the public
// half.
type Identity struct {
	Address types.Address
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewIdentity returns a public-only identity.
func NewIdentity(addr types.Address, public ed25519.PublicKey) Identity {
	return Identity{Address: addr, Public: public}
}

// IdentityFromPrivate returns a signing identity for an existing key.
func IdentityFromPrivate(addr types.Address, private ed25519.PrivateKey) Identity {
	return Identity{
		Address: addr,
		Public:  private.Public().(ed25519.PublicKey),
		private: private,
	}
}

// GenerateIdentity creates a fresh key pair with its address derived from
// the public key. Addresses with a 0xff prefix are reserved and the zero
// address means "none", so generation retries past those.
func GenerateIdentity() Identity {
	for {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			panic(err)
		}
		addr := addressForKey(pub)
		if addr == 0 || (addr>>32) == 0xff {
			continue
		}
		return Identity{Address: addr, Public: pub, private: priv}
	}
}

func addressForKey(pub ed25519.PublicKey) types.Address {
	digest := sha512.Sum512(pub)
	addr, _ := types.AddressFromBytes(digest[:types.AddressLength])
	return addr
}

// HasPrivate is true if this identity can sign.
func (id Identity) HasPrivate() bool {
	return len(id.private) == ed25519.PrivateKeySize
}

// Sign returns the signature of message, or nil without a private key.
func (id Identity) Sign(message []byte) []byte {
	if !id.HasPrivate() {
		return nil
	}
	return ed25519.Sign(id.private, message)
}

// Verify checks a signature made by this identity.
func (id Identity) Verify(message, sig []byte) bool {
	if len(id.Public) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(id.Public, message, sig)
}
