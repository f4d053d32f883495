package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Family selects the address family of an InetAddress.
type Family uint8

const (
	FamilyNil  Family = 0
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

// Scope is a coarse classification of an IP address.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeLoopback
	ScopeMulticast
	ScopeLinkLocal
	ScopePrivate
	ScopePseudoPrivate // not engineered for endpoints, but sometimes used that way
	ScopeShared        // carrier-grade NAT space
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeLoopback:
		return "loopback"
	case ScopeMulticast:
		return "multicast"
	case ScopeLinkLocal:
		return "linklocal"
	case ScopePrivate:
		return "private"
	case ScopePseudoPrivate:
		return "pseudoprivate"
	case ScopeShared:
		return "shared"
	case ScopeGlobal:
		return "global"
	}
	return "none"
}

// InetAddress is an IP endpoint as a comparable value type. IPv4 addresses
// occupy IP[0:4]. For network and route entries the Port field carries the
// netmask bit count instead of a port.
type InetAddress struct {
	Family Family
	IP     [16]byte
	Port   uint16
}

// NewInetAddress builds an InetAddress from a net.IP and a port (or bit count).
func NewInetAddress(ip net.IP, port uint16) InetAddress {
	var a InetAddress
	if ip4 := ip.To4(); ip4 != nil {
		a.Family = FamilyIPv4
		copy(a.IP[:4], ip4)
	} else if ip16 := ip.To16(); ip16 != nil {
		a.Family = FamilyIPv6
		copy(a.IP[:], ip16)
	}
	a.Port = port
	return a
}

// ParseInetAddress parses "ip/port" (or "ip/bits") notation.
func ParseInetAddress(s string) (InetAddress, bool) {
	slash := strings.IndexByte(s, '/')
	ipStr, portStr := s, ""
	if slash >= 0 {
		ipStr, portStr = s[:slash], s[slash+1:]
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return InetAddress{}, false
	}
	var port uint64
	if len(portStr) > 0 {
		var err error
		if port, err = strconv.ParseUint(portStr, 10, 16); err != nil {
			return InetAddress{}, false
		}
	}
	return NewInetAddress(ip, uint16(port)), true
}

// NetIP returns the address as a net.IP, or nil for the nil family.
func (a InetAddress) NetIP() net.IP {
	switch a.Family {
	case FamilyIPv4:
		return net.IP(a.IP[:4])
	case FamilyIPv6:
		return net.IP(a.IP[:])
	}
	return nil
}

// IsNil is true for the zero-family address.
func (a InetAddress) IsNil() bool {
	return a.Family == FamilyNil
}

// IPEquals is true if the other address has the same family and IP,
// regardless of port.
func (a InetAddress) IPEquals(b InetAddress) bool {
	return a.Family == b.Family && a.IP == b.IP
}

func (a InetAddress) String() string {
	if a.IsNil() {
		return "(null)"
	}
	return fmt.Sprintf("%s/%d", a.NetIP().String(), a.Port)
}

// bits returns the address length of the family in bits.
func (a InetAddress) bits() int {
	switch a.Family {
	case FamilyIPv4:
		return 32
	case FamilyIPv6:
		return 128
	}
	return 0
}

// IsNetwork is true if this looks like a network description (a prefix in
// the Port field and all zero host bits) rather than an assigned address.
func (a InetAddress) IsNetwork() bool {
	bits := int(a.Port)
	fam := a.bits()
	if fam == 0 || bits >= fam {
		return false
	}
	for i := bits; i < fam; i++ {
		if a.IP[i/8]&(0x80>>(i%8)) != 0 {
			return false
		}
	}
	return true
}

// pseudoPrivate4 lists /8 blocks that are officially global but not
// routed on the open internet in practice.
var pseudoPrivate4 = [...]byte{6, 11, 21, 22, 25, 26, 28, 29, 30, 33, 55, 214, 215}

// Scope classifies the IP portion of the address.
func (a InetAddress) Scope() Scope {
	switch a.Family {
	case FamilyIPv4:
		ip := a.IP[:4]
		switch {
		case ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] == 0:
			return ScopeNone
		case ip[0] == 127:
			return ScopeLoopback
		case ip[0] >= 224 && ip[0] <= 239:
			return ScopeMulticast
		case ip[0] >= 240:
			return ScopeNone
		case ip[0] == 169 && ip[1] == 254:
			return ScopeLinkLocal
		case ip[0] == 10,
			ip[0] == 172 && ip[1] >= 16 && ip[1] <= 31,
			ip[0] == 192 && ip[1] == 168:
			return ScopePrivate
		case ip[0] == 100 && ip[1] >= 64 && ip[1] <= 127:
			return ScopeShared
		}
		for _, b := range pseudoPrivate4 {
			if ip[0] == b {
				return ScopePseudoPrivate
			}
		}
		return ScopeGlobal
	case FamilyIPv6:
		ip := a.IP
		nonZero := 0
		for _, b := range ip {
			if b != 0 {
				nonZero++
			}
		}
		if nonZero == 0 {
			return ScopeNone
		}
		if nonZero == 1 && ip[15] == 1 {
			return ScopeLoopback
		}
		switch {
		case ip[0] == 0xff:
			return ScopeMulticast
		case ip[0] == 0xfe && ip[1]&0xc0 == 0x80:
			return ScopeLinkLocal
		case ip[0]&0xfe == 0xfc:
			return ScopePrivate
		case ip[0] == 0x20 && ip[1] == 0x01 && ip[2] == 0x0d && ip[3] == 0xb8:
			return ScopePseudoPrivate
		}
		return ScopeGlobal
	}
	return ScopeNone
}
