package credential

import (
	"sync"

	bfilter "github.com/bits-and-blooms/bloom/v3"

	"github.com/weftnet/weft/types"
)

const (
	whoisFilterM = 4096
	whoisFilterK = 6
	// whoisBurst caps how many WHOIS hints go out between rotations.
	whoisBurst = 64
)

// Requester de-duplicates WHOIS hints. Credential verification retries
// until an identity shows up, so the same unknown controller address can be
// asked for many times per second; the filter suppresses the repeats until
// the next Rotate.
type Requester struct {
	mutex sync.Mutex
	seen  *bfilter.BloomFilter
	sent  types.Counter
	send  func(types.Address)
}

// NewRequester wraps send, which performs the actual fire-and-forget hint.
func NewRequester(send func(types.Address)) *Requester {
	return &Requester{
		seen: bfilter.New(whoisFilterM, whoisFilterK),
		send: send,
	}
}

// RequestWhois issues a hint for addr unless one was already issued since
// the last rotation, or the burst cap is reached.
func (r *Requester) RequestWhois(addr types.Address) {
	b := addr.Bytes()
	r.mutex.Lock()
	dup := r.seen.TestOrAdd(b[:])
	r.mutex.Unlock()
	if dup {
		return
	}
	if r.sent.Inc() > whoisBurst {
		r.sent.Dec()
		return
	}
	r.send(addr)
}

// Rotate clears the de-dup state. Call it from periodic maintenance so
// unanswered lookups are eventually retried.
func (r *Requester) Rotate() {
	r.mutex.Lock()
	r.seen.ClearAll()
	r.mutex.Unlock()
	r.sent.Reset()
}

// Source combines a cache of identities with a Requester to form an
// IdentitySource for credential verification.
type Source struct {
	Store IdentityStore
	Whois *Requester
}

func (s Source) GetIdentity(addr types.Address) (Identity, bool) {
	return s.Store.GetIdentity(addr)
}

func (s Source) RequestWhois(addr types.Address) {
	s.Whois.RequestWhois(addr)
}
