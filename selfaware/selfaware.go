// Package selfaware tracks how remote peers see this node's external
// surface, resets paths when a trusted report says the surface moved, and
// derives port predictions for traversing symmetric NATs.
package selfaware

import (
	"sort"
	"sync"

	"github.com/weftnet/weft/types"
)

// entryTimeout is how long a surface report stays relevant, in
// milliseconds. Fairly long, since this mostly prevents stale buildup.
const entryTimeout = 600000

// Key identifies one surface observation context.
type Key struct {
	Reporter         types.Address
	ReceivedOnLocal  types.InetAddress
	ReporterPhysical types.InetAddress
	Scope            types.Scope
}

type entry struct {
	mySurface types.InetAddress
	ts        int64
	trusted   bool
}

// Peer is the per-peer hook used during a surface reset.
type Peer interface {
	// ResetWithinScope drops the peer's paths within one scope and family.
	ResetWithinScope(scope types.Scope, family types.Family, now int64)
}

// Topology enumerates the currently known peers.
type Topology interface {
	EachPeer(visit func(Peer))
}

// SelfAwareness is safe for concurrent use. The EachPeer call-out during a
// reset happens while the internal lock is held: peer callbacks must not
// call back into this object or they will deadlock.
type SelfAwareness struct {
	mutex    sync.Mutex
	topology Topology
	phy      map[Key]entry
}

// New returns an empty map backed by the given topology.
func New(topology Topology) *SelfAwareness {
	return &SelfAwareness{
		topology: topology,
		phy:      make(map[Key]entry),
	}
}

// IAm records that reporter (reached at reporterPhysical, via our local
// bind receivedOnLocal) sees our external surface as mySurface. A trusted
// report that contradicts a fresh entry purges conflicting observations in
// the scope and resets all peer paths within it.
func (sa *SelfAwareness) IAm(reporter types.Address, receivedOnLocal, reporterPhysical, mySurface types.InetAddress, trusted bool, now int64) {
	scope := mySurface.Scope()

	if scope != reporterPhysical.Scope() {
		return
	}
	switch scope {
	case types.ScopeNone, types.ScopeLoopback, types.ScopeMulticast:
		return
	}

	sa.mutex.Lock()
	defer sa.mutex.Unlock()

	key := Key{
		Reporter:         reporter,
		ReceivedOnLocal:  receivedOnLocal,
		ReporterPhysical: reporterPhysical,
		Scope:            scope,
	}
	e := sa.phy[key]

	if trusted && (now-e.ts) < entryTimeout && !e.mySurface.IPEquals(mySurface) {
		// A trusted peer sees a different external surface: store it, then
		// erase every other observation in this scope that came from a
		// different remote so conflicting reports don't cause thrashing.
		sa.phy[key] = entry{mySurface: mySurface, ts: now, trusted: trusted}
		for k := range sa.phy {
			if k.Scope == scope && k.ReporterPhysical != reporterPhysical {
				delete(sa.phy, k)
			}
		}
		if sa.topology != nil {
			sa.topology.EachPeer(func(p Peer) {
				p.ResetWithinScope(scope, mySurface.Family, now)
			})
		}
	} else {
		sa.phy[key] = entry{mySurface: mySurface, ts: now, trusted: trusted}
	}
}

// Clean evicts entries older than the entry timeout.
func (sa *SelfAwareness) Clean(now int64) {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()
	for k, e := range sa.phy {
		if now-e.ts >= entryTimeout {
			delete(sa.phy, k)
		}
	}
}

// Len returns the number of live observations.
func (sa *SelfAwareness) Len() int {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()
	return len(sa.phy)
}

// Surfaces returns the distinct external surfaces currently on record.
func (sa *SelfAwareness) Surfaces() []types.InetAddress {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()
	seen := make(map[types.InetAddress]struct{})
	var out []types.InetAddress
	for _, e := range sa.phy {
		if _, dup := seen[e.mySurface]; !dup {
			seen[e.mySurface] = struct{}{}
			out = append(out, e.mySurface)
		}
	}
	return out
}

// SymmetricNATPredictions guesses where a symmetric NAT will map our next
// outbound flows, for global IPv4 only.
//
// For each IP reported by a trusted (upstream) peer we take the freshest
// port reported by any peer for that IP, then fan out the next three ports.
// Only trusted peers may introduce IPs: otherwise a peer could poison this
// cache via surface reports and coax us into advertising its address to
// others, setting up meta-data gathering or a DOS vector. Untrusted reports
// may still refresh the port, which advances monotonically on these NATs.
func (sa *SelfAwareness) SymmetricNATPredictions() []types.InetAddress {
	type obs struct {
		ts   int64
		port uint16
	}
	portByIP := make(map[[4]byte]obs)
	var oneTrueSurface types.InetAddress
	symmetric := false

	sa.mutex.Lock()
	for _, e := range sa.phy {
		if e.trusted && e.mySurface.Family == types.FamilyIPv4 && e.mySurface.Scope() == types.ScopeGlobal {
			if oneTrueSurface.IsNil() {
				oneTrueSurface = e.mySurface
			} else if oneTrueSurface != e.mySurface {
				symmetric = true
			}
			var ip [4]byte
			copy(ip[:], e.mySurface.IP[:4])
			portByIP[ip] = obs{ts: e.ts, port: e.mySurface.Port}
		}
	}
	for _, e := range sa.phy {
		if e.mySurface.Family == types.FamilyIPv4 && e.mySurface.Scope() == types.ScopeGlobal {
			var ip [4]byte
			copy(ip[:], e.mySurface.IP[:4])
			if o, ok := portByIP[ip]; ok && o.ts < e.ts {
				portByIP[ip] = obs{ts: e.ts, port: e.mySurface.Port}
			}
		}
	}
	sa.mutex.Unlock()

	if !symmetric {
		return nil
	}

	ips := make([][4]byte, 0, len(portByIP))
	for ip := range portByIP {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool {
		a, b := ips[i], ips[j]
		for k := 0; k < 4; k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	var out []types.InetAddress
	seen := make(map[types.InetAddress]struct{})
	for k := 1; k <= 3; k++ {
		for _, ip := range ips {
			p := uint32(portByIP[ip].port) + uint32(k)
			if p > 65535 {
				p -= 64511
			}
			var pred types.InetAddress
			pred.Family = types.FamilyIPv4
			copy(pred.IP[:4], ip[:])
			pred.Port = uint16(p)
			if _, dup := seen[pred]; !dup {
				seen[pred] = struct{}{}
				out = append(out, pred)
			}
		}
	}
	return out
}
