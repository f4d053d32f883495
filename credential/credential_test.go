package credential

import (
	"bytes"
	"testing"

	"github.com/weftnet/weft/types"
)

// testSource is an IdentitySource backed by a map, recording WHOIS hints.
type testSource struct {
	ids   map[types.Address]Identity
	whois []types.Address
}

func newTestSource(ids ...Identity) *testSource {
	s := &testSource{ids: make(map[types.Address]Identity)}
	for _, id := range ids {
		s.ids[id.Address] = id
	}
	return s
}

func (s *testSource) GetIdentity(addr types.Address) (Identity, bool) {
	id, ok := s.ids[addr]
	return id, ok
}

func (s *testSource) RequestWhois(addr types.Address) {
	s.whois = append(s.whois, addr)
}

// networkFor builds a network id whose controller is the given identity.
func networkFor(controller Identity) uint64 {
	return uint64(controller.Address)<<24 | 0x123456
}

func TestControllerFor(t *testing.T) {
	ctrl := GenerateIdentity()
	nwid := networkFor(ctrl)
	if ControllerFor(nwid) != ctrl.Address {
		t.Fatalf("ControllerFor(%x) = %v, want %v", nwid, ControllerFor(nwid), ctrl.Address)
	}
}

func TestTagSignVerify(t *testing.T) {
	ctrl := GenerateIdentity()
	member := GenerateIdentity()
	tag := NewTag(networkFor(ctrl), 1000, member.Address, 7, 42)
	if !tag.Sign(ctrl) {
		t.Fatalf("Sign failed")
	}
	src := newTestSource(ctrl)
	if r := tag.Verify(src); r != ResultOK {
		t.Fatalf("Verify = %v", r)
	}

	// Unknown signer identity: waiting, and a WHOIS hint goes out.
	empty := newTestSource()
	if r := tag.Verify(empty); r != ResultWaitingForIdentity {
		t.Fatalf("Verify without identity = %v", r)
	}
	if len(empty.whois) != 1 || empty.whois[0] != ctrl.Address {
		t.Fatalf("no WHOIS hint for %v", ctrl.Address)
	}

	// Tampering breaks the signature.
	tag.Value++
	if r := tag.Verify(src); r != ResultBad {
		t.Fatalf("Verify of tampered tag = %v", r)
	}
	tag.Value--

	// A signer other than the network's controller is always bad.
	other := GenerateIdentity()
	tag2 := NewTag(networkFor(ctrl), 1000, member.Address, 7, 42)
	tag2.Sign(other)
	if r := tag2.Verify(newTestSource(ctrl, other)); r != ResultBad {
		t.Fatalf("Verify of wrong signer = %v", r)
	}
}

func TestTagDecodeConcatenated(t *testing.T) {
	ctrl := GenerateIdentity()
	member := GenerateIdentity()
	a := NewTag(networkFor(ctrl), 1, member.Address, 1, 10)
	b := NewTag(networkFor(ctrl), 2, member.Address, 2, 20)
	a.Sign(ctrl)
	b.Sign(ctrl)
	blob := a.Encode(nil, false)
	blob = b.Encode(blob, false)

	var got Tag
	rest, err := got.Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != a {
		t.Fatalf("first tag mismatch")
	}
	if rest, err = got.Decode(rest); err != nil || len(rest) != 0 {
		t.Fatalf("second decode: %v, %d left", err, len(rest))
	}
	if got != b {
		t.Fatalf("second tag mismatch")
	}
}

func TestForSignFramingSentinel(t *testing.T) {
	ctrl := GenerateIdentity()
	tag := NewTag(networkFor(ctrl), 1, ctrl.Address, 1, 1)
	buf := tag.Encode(nil, true)
	sentinel := []byte{0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f}
	if !bytes.HasPrefix(buf, sentinel) || !bytes.HasSuffix(buf, sentinel) {
		t.Fatalf("for-sign serialization is not sentinel framed")
	}
	// The signature block must be absent in for-signing mode.
	transport := tag.Encode(nil, false)
	if len(buf) >= len(transport) {
		t.Fatalf("for-sign form should be shorter than transport form")
	}
}

func TestTruncatedTagFails(t *testing.T) {
	ctrl := GenerateIdentity()
	tag := NewTag(networkFor(ctrl), 1, ctrl.Address, 1, 1)
	tag.Sign(ctrl)
	blob := tag.Encode(nil, false)
	var got Tag
	if _, err := got.Decode(blob[:len(blob)-3]); err == nil {
		t.Fatalf("truncated decode succeeded")
	}
	if got != (Tag{}) {
		t.Fatalf("failed decode left partial state")
	}
}

func TestCapabilityRoundTrip(t *testing.T) {
	ctrl := GenerateIdentity()
	member := GenerateIdentity()
	rules := []Rule{
		EtherTypeRule(0x0800),
		{Type: RuleActionAccept},
		EtherTypeRule(0x86dd),
		{Type: RuleActionAccept},
	}
	cp := NewCapability(networkFor(ctrl), 1000, member.Address, 9, rules)
	if !cp.Sign(ctrl) {
		t.Fatalf("Sign failed")
	}
	blob := cp.Encode(nil, false)
	var got Capability
	rest, err := got.Decode(blob)
	if err != nil || len(rest) != 0 {
		t.Fatalf("decode: %v, %d left", err, len(rest))
	}
	if got.ID != 9 || len(got.Rules) != 4 {
		t.Fatalf("decoded capability mismatch: %+v", got)
	}
	if got.Rules[0].EtherType() != 0x0800 || got.Rules[2].EtherType() != 0x86dd {
		t.Fatalf("rules did not round trip")
	}
	if r := got.Verify(newTestSource(ctrl)); r != ResultOK {
		t.Fatalf("Verify after round trip = %v", r)
	}
}

func TestCOMAgreement(t *testing.T) {
	ctrl := GenerateIdentity()
	alice := GenerateIdentity()
	bob := GenerateIdentity()
	nwid := networkFor(ctrl)

	a := NewCertificateOfMembership(nwid, 10000, 1000, alice.Address)
	b := NewCertificateOfMembership(nwid, 10500, 1000, bob.Address)
	a.Sign(ctrl)
	b.Sign(ctrl)

	if r := a.Verify(newTestSource(ctrl)); r != ResultOK {
		t.Fatalf("Verify = %v", r)
	}
	if !a.AgreesWith(&b) || !b.AgreesWith(&a) {
		t.Fatalf("certificates within tolerance should agree")
	}

	// Too old: timestamps drift past the tolerance.
	c := NewCertificateOfMembership(nwid, 12000, 1000, bob.Address)
	c.Sign(ctrl)
	if a.AgreesWith(&c) {
		t.Fatalf("certificates out of tolerance agreed")
	}

	// A different network never agrees.
	d := NewCertificateOfMembership(nwid^0xff000000, 10000, 1000, bob.Address)
	if a.AgreesWith(&d) {
		t.Fatalf("different networks agreed")
	}

	var zero CertificateOfMembership
	if a.AgreesWith(&zero) {
		t.Fatalf("agreement with the zero certificate")
	}
}

func TestCOMRoundTrip(t *testing.T) {
	ctrl := GenerateIdentity()
	com := NewCertificateOfMembership(networkFor(ctrl), 123456, 7200000, ctrl.Address)
	com.Sign(ctrl)
	blob := com.Encode(nil, false)
	var got CertificateOfMembership
	rest, err := got.Decode(blob)
	if err != nil || len(rest) != 0 {
		t.Fatalf("decode: %v, %d left", err, len(rest))
	}
	if got.NetworkID() != com.NetworkID() || got.Timestamp() != com.Timestamp() || got.IssuedTo() != com.IssuedTo() {
		t.Fatalf("reserved qualifiers did not round trip")
	}
	if r := got.Verify(newTestSource(ctrl)); r != ResultOK {
		t.Fatalf("Verify after round trip = %v", r)
	}
}

func TestCOOOwnership(t *testing.T) {
	ctrl := GenerateIdentity()
	member := GenerateIdentity()
	mac := []byte{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}

	coo := NewCertificateOfOwnership(networkFor(ctrl), 1000, member.Address, 1)
	if !coo.AddThing(ThingMAC, mac) {
		t.Fatalf("AddThing failed")
	}
	if !coo.Sign(ctrl) {
		t.Fatalf("Sign failed")
	}
	if r := coo.Verify(newTestSource(ctrl)); r != ResultOK {
		t.Fatalf("Verify = %v", r)
	}
	if !coo.Owns(ThingMAC, mac) {
		t.Fatalf("Owns rejected the listed MAC")
	}
	other := []byte{0x02, 0x11, 0x22, 0x33, 0x44, 0x56}
	if coo.Owns(ThingMAC, other) {
		t.Fatalf("Owns accepted a different MAC")
	}
	if coo.Owns(ThingIPv4, mac[:4]) {
		t.Fatalf("Owns accepted a different thing type")
	}

	blob := coo.Encode(nil, false)
	var got CertificateOfOwnership
	if _, err := got.Decode(blob); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Owns(ThingMAC, mac) {
		t.Fatalf("ownership lost in round trip")
	}
}

func TestWhoisRequesterDeDup(t *testing.T) {
	var sent []types.Address
	r := NewRequester(func(a types.Address) { sent = append(sent, a) })
	addr := types.NewAddress(0x1234567890)
	r.RequestWhois(addr)
	r.RequestWhois(addr)
	r.RequestWhois(addr)
	if len(sent) != 1 {
		t.Fatalf("sent %d hints, want 1", len(sent))
	}
	r.RequestWhois(types.NewAddress(0x0987654321))
	if len(sent) != 2 {
		t.Fatalf("distinct address was suppressed")
	}
	r.Rotate()
	r.RequestWhois(addr)
	if len(sent) != 3 {
		t.Fatalf("rotation did not clear the filter")
	}
}
