package swupdate

import (
	"encoding/json"

	"github.com/weftnet/weft/types"
)

// Verb is the one-byte header on every update message.
type Verb uint8

const (
	VerbGetLatest Verb = 1
	VerbLatest    Verb = 2
	VerbGetData   Verb = 3
	VerbData      Verb = 4
)

// hashPrefixSize is the length of the SHA-512 prefix that identifies an
// update image on the wire.
const hashPrefixSize = 16

// Meta describes one update image. The same shape doubles as the
// GET_LATEST request body, where only the version, target and
// ExpectedSigner fields are meaningful.
type Meta struct {
	VersionMajor int    `json:"versionMajor"`
	VersionMinor int    `json:"versionMinor"`
	VersionRev   int    `json:"versionRev"`
	VersionBuild int    `json:"versionBuild"`
	Platform     int    `json:"platform"`
	Architecture int    `json:"arch"`
	Vendor       int    `json:"vendor"`
	Channel      string `json:"channel"`

	ExpectedSigner string `json:"expectedSigner,omitempty"`

	UpdateSize     uint64 `json:"updateSize,omitempty"`
	UpdateHash     string `json:"updateHash,omitempty"`
	UpdateSig      string `json:"updateSig,omitempty"`
	UpdateSignedBy string `json:"updateSignedBy,omitempty"`
	UpdateExecArgs string `json:"updateExecArgs,omitempty"`
}

func parseMeta(b []byte) (*Meta, error) {
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, types.ErrDecode
	}
	return &m, nil
}

// canonical returns a deterministic serialization for equality checks, so
// whitespace differences between transmissions don't restart a download.
func (m *Meta) canonical() []byte {
	if m == nil {
		return nil
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return out
}

func (m *Meta) versionTuple() [4]int {
	return [4]int{m.VersionMajor, m.VersionMinor, m.VersionRev, m.VersionBuild}
}

// compareVersion orders version tuples lexicographically.
func compareVersion(a, b [4]int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// splitArgs splits an exec argument string on spaces, honoring backslash
// escapes and double-quote grouping.
func splitArgs(s string) []string {
	var args []string
	var cur []byte
	quoted := false
	escaped := false
	flush := func() {
		if len(cur) > 0 {
			args = append(args, string(cur))
			cur = cur[:0]
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur = append(cur, c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ' ' && !quoted:
			flush()
		default:
			cur = append(cur, c)
		}
	}
	flush()
	return args
}
