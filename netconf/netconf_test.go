package netconf

import (
	"reflect"
	"testing"

	"github.com/weftnet/weft/credential"
	"github.com/weftnet/weft/dict"
	"github.com/weftnet/weft/types"
)

func testConfig(ctrl, member credential.Identity) Config {
	nwid := uint64(ctrl.Address)<<24 | 0xabcdef
	com := credential.NewCertificateOfMembership(nwid, 50000, 7200000, member.Address)
	com.Sign(ctrl)

	capA := credential.NewCapability(nwid, 50000, member.Address, 2, []credential.Rule{
		credential.EtherTypeRule(0x0800),
		{Type: credential.RuleActionAccept},
	})
	capA.Sign(ctrl)
	capB := credential.NewCapability(nwid, 50000, member.Address, 7, []credential.Rule{
		{Type: credential.RuleActionAccept},
	})
	capB.Sign(ctrl)

	tagA := credential.NewTag(nwid, 50000, member.Address, 100, 1)
	tagA.Sign(ctrl)
	tagB := credential.NewTag(nwid, 50000, member.Address, 200, 2)
	tagB.Sign(ctrl)

	coo := credential.NewCertificateOfOwnership(nwid, 50000, member.Address, 1)
	coo.AddThing(credential.ThingMAC, []byte{2, 0x11, 0x22, 0x33, 0x44, 0x55})
	coo.Sign(ctrl)

	ip4, _ := types.ParseInetAddress("10.1.2.3/24")
	ip6, _ := types.ParseInetAddress("fd00::1234/88")
	target, _ := types.ParseInetAddress("10.1.2.0/24")
	via, _ := types.ParseInetAddress("10.1.2.1/0")

	c := Config{
		NetworkID:              nwid,
		Timestamp:              60000,
		CredentialTimeMaxDelta: 7200000,
		Revision:               9,
		IssuedTo:               member.Address,
		Flags:                  FlagEnableBroadcast | FlagDisableCompression,
		MulticastLimit:         32,
		Type:                   TypePrivate,
		Name:                   "test network",
		COM:                    com,
		Routes:                 []Route{{Target: target, Via: via, Flags: 1, Metric: 5}},
		StaticIPs:              []types.InetAddress{ip4, ip6},
		Rules: []credential.Rule{
			credential.EtherTypeRule(0x0800),
			{Type: credential.RuleActionAccept},
		},
		Capabilities:            []credential.Capability{capA, capB},
		Tags:                    []credential.Tag{tagA, tagB},
		CertificatesOfOwnership: []credential.CertificateOfOwnership{coo},
	}
	c.AddSpecialist(types.NewAddress(0x1111111111), SpecialistTypeActiveBridge)
	c.AddSpecialist(types.NewAddress(0x2222222222), SpecialistTypeAnchor|SpecialistTypeCircuitTester)
	return c
}

func TestDictionaryRoundTrip(t *testing.T) {
	ctrl := credential.GenerateIdentity()
	member := credential.GenerateIdentity()
	c := testConfig(ctrl, member)

	d := dict.New(DictCapacity)
	if !c.ToDictionary(d, false) {
		t.Fatalf("ToDictionary failed")
	}
	var got Config
	if !got.FromDictionary(d) {
		t.Fatalf("FromDictionary failed")
	}
	if !reflect.DeepEqual(c, got) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, c)
	}
}

func TestLegacyAndModernYieldSameRecord(t *testing.T) {
	ctrl := credential.GenerateIdentity()
	member := credential.GenerateIdentity()
	c := testConfig(ctrl, member)

	modern := dict.New(DictCapacity)
	withLegacy := dict.New(DictCapacity)
	if !c.ToDictionary(modern, false) || !c.ToDictionary(withLegacy, true) {
		t.Fatalf("ToDictionary failed")
	}
	var a, b Config
	if !a.FromDictionary(modern) || !b.FromDictionary(withLegacy) {
		t.Fatalf("FromDictionary failed")
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("legacy keys changed the modern parse")
	}
}

func TestLegacyUpgrade(t *testing.T) {
	d := dict.New(0)
	d.AddUint64("v", 5)
	d.AddUint64("nwid", 0x8056c2e21c123456)
	d.AddUint64("id", 0x1122334455)
	d.AddBool("pb", true)
	d.AddBool("eb", true)
	d.AddString("v4s", "10.0.0.1/24")
	d.AddString("et", "800,86dd")

	var c Config
	if !c.FromDictionary(d) {
		t.Fatalf("FromDictionary failed")
	}
	if !c.AllowPassiveBridging() || !c.EnableBroadcast() {
		t.Fatalf("legacy booleans did not become flags: %x", c.Flags)
	}
	if !c.NDPEmulation() {
		t.Fatalf("NDP emulation should be on for old configs")
	}
	if !c.IsPrivate() {
		t.Fatalf("legacy default should be private")
	}
	if len(c.StaticIPs) != 1 || c.StaticIPs[0].String() != "10.0.0.1/24" {
		t.Fatalf("static IPs = %v", c.StaticIPs)
	}
	want := []credential.RuleType{
		credential.RuleMatchEtherType,
		credential.RuleActionAccept,
		credential.RuleMatchEtherType,
		credential.RuleActionAccept,
	}
	if len(c.Rules) != len(want) {
		t.Fatalf("rules = %+v", c.Rules)
	}
	for i, w := range want {
		if c.Rules[i].Kind() != w {
			t.Fatalf("rule %d kind = %v, want %v", i, c.Rules[i].Kind(), w)
		}
	}
	if c.Rules[0].EtherType() != 0x800 || c.Rules[2].EtherType() != 0x86dd {
		t.Fatalf("ether types = %x, %x", c.Rules[0].EtherType(), c.Rules[2].EtherType())
	}
}

func TestLegacyNetworkAddressesRejected(t *testing.T) {
	d := dict.New(0)
	d.AddUint64("v", 5)
	d.AddUint64("nwid", 1)
	d.AddUint64("id", 2)
	d.AddString("v4s", "10.0.0.0/24,10.0.0.7/24")

	var c Config
	if !c.FromDictionary(d) {
		t.Fatalf("FromDictionary failed")
	}
	if len(c.StaticIPs) != 1 || c.StaticIPs[0].String() != "10.0.0.7/24" {
		t.Fatalf("network address was not rejected: %v", c.StaticIPs)
	}
	// No et key: a single ACCEPT rule is implied.
	if len(c.Rules) != 1 || c.Rules[0].Kind() != credential.RuleActionAccept {
		t.Fatalf("default rules = %+v", c.Rules)
	}
}

func TestLegacyActiveBridges(t *testing.T) {
	d := dict.New(0)
	d.AddUint64("v", 5)
	d.AddUint64("nwid", 1)
	d.AddUint64("id", 2)
	d.AddString("ab", "1111111111,2222222222")

	var c Config
	if !c.FromDictionary(d) {
		t.Fatalf("FromDictionary failed")
	}
	ab := c.ActiveBridges()
	if len(ab) != 2 || ab[0] != 0x1111111111 || ab[1] != 0x2222222222 {
		t.Fatalf("active bridges = %v", ab)
	}
	if !c.PermitsBridging(0x1111111111) || c.PermitsBridging(0x3333333333) {
		t.Fatalf("PermitsBridging wrong")
	}
}

func TestBadNetworkOrMemberID(t *testing.T) {
	for _, setup := range []func(*dict.Dictionary){
		func(d *dict.Dictionary) { d.AddUint64("nwid", 0); d.AddUint64("id", 2) },
		func(d *dict.Dictionary) { d.AddUint64("nwid", 1); d.AddUint64("id", 0) },
	} {
		d := dict.New(0)
		d.AddUint64("v", 7)
		setup(d)
		c := Config{NetworkID: 99} // should be zeroed by the failed parse
		if c.FromDictionary(d) {
			t.Fatalf("parse of invalid config succeeded")
		}
		if c.IsValid() || c.NetworkID != 0 {
			t.Fatalf("failed parse left state behind: %+v", c)
		}
	}
}

func TestCapabilityAndTagLookup(t *testing.T) {
	ctrl := credential.GenerateIdentity()
	member := credential.GenerateIdentity()
	c := testConfig(ctrl, member)

	d := dict.New(DictCapacity)
	c.ToDictionary(d, false)
	var got Config
	if !got.FromDictionary(d) {
		t.Fatalf("FromDictionary failed")
	}
	if cp := got.CapabilityByID(7); cp == nil || cp.ID != 7 {
		t.Fatalf("CapabilityByID(7) = %v", cp)
	}
	if got.CapabilityByID(8) != nil {
		t.Fatalf("CapabilityByID(8) found something")
	}
	if tag := got.TagByID(200); tag == nil || tag.Value != 2 {
		t.Fatalf("TagByID(200) = %v", tag)
	}
	if got.TagByID(150) != nil {
		t.Fatalf("TagByID(150) found something")
	}
}

func TestStaticIPTruncation(t *testing.T) {
	ctrl := credential.GenerateIdentity()
	member := credential.GenerateIdentity()
	c := testConfig(ctrl, member)
	c.StaticIPs = nil
	for i := 0; i < MaxStaticIPs+8; i++ {
		ip, _ := types.ParseInetAddress("10.0.1.1/24")
		ip.IP[3] = byte(i + 1)
		c.StaticIPs = append(c.StaticIPs, ip)
	}

	d := dict.New(DictCapacity)
	if !c.ToDictionary(d, false) {
		t.Fatalf("ToDictionary failed")
	}
	var got Config
	if !got.FromDictionary(d) {
		t.Fatalf("FromDictionary failed")
	}
	if len(got.StaticIPs) != MaxStaticIPs {
		t.Fatalf("got %d static IPs, want the cap %d", len(got.StaticIPs), MaxStaticIPs)
	}
}

func TestHelpers(t *testing.T) {
	ctrl := credential.GenerateIdentity()
	member := credential.GenerateIdentity()
	c := testConfig(ctrl, member)

	if c.IsPublic() || !c.IsPrivate() {
		t.Fatalf("type helpers wrong")
	}
	if !c.EnableBroadcast() || c.AllowPassiveBridging() {
		t.Fatalf("flag helpers wrong")
	}
	if !c.IsAnchor(0x2222222222) || c.IsAnchor(0x1111111111) {
		t.Fatalf("IsAnchor wrong")
	}
	if !c.CircuitTestingAllowed(c.Controller()) {
		t.Fatalf("controller must be allowed to circuit test")
	}
	if !c.CircuitTestingAllowed(0x2222222222) || c.CircuitTestingAllowed(member.Address) {
		t.Fatalf("CircuitTestingAllowed wrong")
	}

	// AddSpecialist merges roles into an existing slot.
	n := len(c.Specialists)
	c.AddSpecialist(0x1111111111, SpecialistTypeAnchor)
	if len(c.Specialists) != n {
		t.Fatalf("AddSpecialist appended instead of merging")
	}
	if !c.IsAnchor(0x1111111111) {
		t.Fatalf("merged role not visible")
	}
}

func TestClone(t *testing.T) {
	ctrl := credential.GenerateIdentity()
	member := credential.GenerateIdentity()
	c := testConfig(ctrl, member)
	clone := c.Clone()
	if !reflect.DeepEqual(c, clone) {
		t.Fatalf("clone differs")
	}
	clone.Specialists[0] = 0
	clone.Rules[0].Value[0] = 0xff
	clone.Tags[0].Value = 99
	if c.Specialists[0] == 0 || c.Rules[0].Value[0] == 0xff || c.Tags[0].Value == 99 {
		t.Fatalf("clone shares storage with the original")
	}
}
