// Package netconf implements the network configuration record and its
// dictionary codec, including the legacy fallback for configs emitted by
// old controllers.
package netconf

import (
	"sort"

	"github.com/weftnet/weft/credential"
	"github.com/weftnet/weft/types"
)

// Config flags (64-bit bitfield).
const (
	FlagAllowPassiveBridging          uint64 = 0x0000000000000001
	FlagEnableBroadcast               uint64 = 0x0000000000000002
	FlagEnableIPv6NDPEmulation        uint64 = 0x0000000000000004
	FlagRulesResultOfUnsupportedMatch uint64 = 0x0000000000000008
	FlagDisableCompression            uint64 = 0x0000000000000010
)

// Specialist role flags, occupying bits 40..63 of a specialist word. The
// low 40 bits are the device address.
const (
	SpecialistTypeActiveBridge  uint64 = 0x0000020000000000
	SpecialistTypeAnchor        uint64 = 0x0000040000000000
	SpecialistTypeCircuitTester uint64 = 0x0000080000000000
)

const specialistAddressMask uint64 = 0xffffffffff

// Compiled-in array caps. Parsing silently truncates anything longer, for
// compatibility with controllers that send more than this build supports.
const (
	MaxSpecialists             = 256
	MaxRoutes                  = 32
	MaxStaticIPs               = 16
	MaxRules                   = 1024
	MaxCapabilities            = 128
	MaxTags                    = 128
	MaxCertificatesOfOwnership = 4
	MaxNameLength              = 127
)

// Default and minimum tolerance between the config timestamp and the
// timestamps of credentials presented with it, in milliseconds. The default
// leaves ample room for a controller fail-over; the minimum still gives all
// online members three refresh attempts.
const (
	DefaultCredentialTimeMaxDelta = 7200000
	MinCredentialTimeMaxDelta     = 185000
)

// Type is the network access model.
type Type int

const (
	TypePrivate Type = 0
	TypePublic  Type = 1
)

// Route is a managed route pushed with the config. Target and Via carry
// the netmask bit count in their port fields.
type Route struct {
	Target types.InetAddress
	Via    types.InetAddress
	Flags  uint16
	Metric uint16
}

// Config is a network configuration as issued by a controller. It is a
// plain value: assignment copies the header fields but shares slices, so
// use Clone when a deep copy is needed. Capabilities and Tags are kept
// sorted ascending by id.
type Config struct {
	NetworkID              uint64
	Timestamp              int64
	CredentialTimeMaxDelta int64
	Revision               uint64
	IssuedTo               types.Address
	Flags                  uint64
	MulticastLimit         uint32
	Type                   Type
	Name                   string
	COM                    credential.CertificateOfMembership

	Specialists             []uint64
	Routes                  []Route
	StaticIPs               []types.InetAddress
	Rules                   []credential.Rule
	Capabilities            []credential.Capability
	Tags                    []credential.Tag
	CertificatesOfOwnership []credential.CertificateOfOwnership
}

// IsValid is false for the zero config or one that failed to parse.
func (c *Config) IsValid() bool {
	return c.NetworkID != 0
}

func (c *Config) AllowPassiveBridging() bool {
	return c.Flags&FlagAllowPassiveBridging != 0
}

func (c *Config) EnableBroadcast() bool {
	return c.Flags&FlagEnableBroadcast != 0
}

func (c *Config) NDPEmulation() bool {
	return c.Flags&FlagEnableIPv6NDPEmulation != 0
}

func (c *Config) DisableCompression() bool {
	return c.Flags&FlagDisableCompression != 0
}

func (c *Config) IsPublic() bool {
	return c.Type == TypePublic
}

func (c *Config) IsPrivate() bool {
	return c.Type == TypePrivate
}

// Controller returns the address of the controller for this network.
func (c *Config) Controller() types.Address {
	return credential.ControllerFor(c.NetworkID)
}

func (c *Config) specialistsWithRole(role uint64) []types.Address {
	var r []types.Address
	for _, s := range c.Specialists {
		if s&role != 0 {
			r = append(r, types.NewAddress(s))
		}
	}
	return r
}

// ActiveBridges returns the devices designated as active bridges.
func (c *Config) ActiveBridges() []types.Address {
	return c.specialistsWithRole(SpecialistTypeActiveBridge)
}

// Anchors returns the stable devices that cache multicast info.
func (c *Config) Anchors() []types.Address {
	return c.specialistsWithRole(SpecialistTypeAnchor)
}

// IsAnchor reports whether a is listed as an anchor.
func (c *Config) IsAnchor(a types.Address) bool {
	for _, s := range c.Specialists {
		if types.NewAddress(s) == a && s&SpecialistTypeAnchor != 0 {
			return true
		}
	}
	return false
}

// PermitsBridging reports whether fromPeer may bridge other Ethernet
// devices onto this network.
func (c *Config) PermitsBridging(fromPeer types.Address) bool {
	if c.Flags&FlagAllowPassiveBridging != 0 {
		return true
	}
	for _, s := range c.Specialists {
		if types.NewAddress(s) == fromPeer && s&SpecialistTypeActiveBridge != 0 {
			return true
		}
	}
	return false
}

// CircuitTestingAllowed reports whether byPeer may run circuit tests here.
// The controller always may.
func (c *Config) CircuitTestingAllowed(byPeer types.Address) bool {
	if byPeer == c.Controller() {
		return true
	}
	for _, s := range c.Specialists {
		if types.NewAddress(s) == byPeer && s&SpecialistTypeCircuitTester != 0 {
			return true
		}
	}
	return false
}

// AddSpecialist ORs role flags into an existing specialist entry for a, or
// appends a new entry if there is room.
func (c *Config) AddSpecialist(a types.Address, roleFlags uint64) bool {
	for i, s := range c.Specialists {
		if s&specialistAddressMask == uint64(a) {
			c.Specialists[i] |= roleFlags
			return true
		}
	}
	if len(c.Specialists) < MaxSpecialists {
		c.Specialists = append(c.Specialists, roleFlags|uint64(a))
		return true
	}
	return false
}

// CapabilityByID finds a capability by id over the sorted array.
func (c *Config) CapabilityByID(id uint32) *credential.Capability {
	i := sort.Search(len(c.Capabilities), func(i int) bool {
		return c.Capabilities[i].ID >= id
	})
	if i < len(c.Capabilities) && c.Capabilities[i].ID == id {
		return &c.Capabilities[i]
	}
	return nil
}

// TagByID finds a tag by id over the sorted array.
func (c *Config) TagByID(id uint32) *credential.Tag {
	i := sort.Search(len(c.Tags), func(i int) bool {
		return c.Tags[i].ID >= id
	})
	if i < len(c.Tags) && c.Tags[i].ID == id {
		return &c.Tags[i]
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() Config {
	out := *c
	out.Specialists = append([]uint64(nil), c.Specialists...)
	out.Routes = append([]Route(nil), c.Routes...)
	out.StaticIPs = append([]types.InetAddress(nil), c.StaticIPs...)
	out.Rules = make([]credential.Rule, len(c.Rules))
	for i := range c.Rules {
		out.Rules[i] = c.Rules[i]
		out.Rules[i].Value = append([]byte(nil), c.Rules[i].Value...)
	}
	out.Capabilities = make([]credential.Capability, len(c.Capabilities))
	for i := range c.Capabilities {
		out.Capabilities[i] = c.Capabilities[i]
		out.Capabilities[i].Rules = make([]credential.Rule, len(c.Capabilities[i].Rules))
		for j := range c.Capabilities[i].Rules {
			out.Capabilities[i].Rules[j] = c.Capabilities[i].Rules[j]
			out.Capabilities[i].Rules[j].Value = append([]byte(nil), c.Capabilities[i].Rules[j].Value...)
		}
	}
	out.Tags = append([]credential.Tag(nil), c.Tags...)
	out.CertificatesOfOwnership = make([]credential.CertificateOfOwnership, len(c.CertificatesOfOwnership))
	for i := range c.CertificatesOfOwnership {
		out.CertificatesOfOwnership[i] = c.CertificatesOfOwnership[i]
		out.CertificatesOfOwnership[i].Things = make([]credential.OwnedThing, len(c.CertificatesOfOwnership[i].Things))
		for j := range c.CertificatesOfOwnership[i].Things {
			out.CertificatesOfOwnership[i].Things[j] = c.CertificatesOfOwnership[i].Things[j]
			out.CertificatesOfOwnership[i].Things[j].Value = append([]byte(nil), c.CertificatesOfOwnership[i].Things[j].Value...)
		}
	}
	out.COM.Qualifiers = append([]credential.Qualifier(nil), c.COM.Qualifiers...)
	return out
}

func (c *Config) sortCredentials() {
	sort.Slice(c.Capabilities, func(i, j int) bool {
		return c.Capabilities[i].ID < c.Capabilities[j].ID
	})
	sort.Slice(c.Tags, func(i, j int) bool {
		return c.Tags[i].ID < c.Tags[j].ID
	})
}
