package netconf

import (
	"github.com/weftnet/weft/credential"
	"github.com/weftnet/weft/dict"
	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// Version is the config format version this codec emits. Dictionaries with
// a version below 6 take the legacy parse path.
const Version = 7

// DictCapacity bounds a dictionary carrying a maximum size config.
const DictCapacity = dict.DefaultCapacity

// Dictionary keys. Binary blobs use upper case, scalars lower case.
// Scalars are bare hex ASCII; booleans are "0"/"1".
const (
	keyVersion                 = "v"
	keyNetworkID               = "nwid"
	keyTimestamp               = "ts"
	keyRevision                = "r"
	keyIssuedTo                = "id"
	keyFlags                   = "f"
	keyMulticastLimit          = "ml"
	keyType                    = "t"
	keyName                    = "n"
	keyCredentialTimeMaxDelta  = "ctmd"
	keyCOM                     = "C"
	keySpecialists             = "S"
	keyRoutes                  = "RT"
	keyStaticIPs               = "I"
	keyRules                   = "R"
	keyCapabilities            = "CAP"
	keyTags                    = "TAG"
	keyCertificatesOfOwnership = "COO"
	// keySignature is written by the controller's transport layer over the
	// finished dictionary, never by this codec.
	keySignature = "C25519"
)

// ToDictionary serializes the config into d. If includeLegacy is set the
// deprecated keys understood by old nodes are emitted as well. It returns
// false on dictionary overflow.
func (c *Config) ToDictionary(d *dict.Dictionary, includeLegacy bool) bool {
	d.Clear()

	// The human-readable fields go first.
	if !d.AddUint64(keyVersion, Version) {
		return false
	}
	if !d.AddUint64(keyNetworkID, c.NetworkID) {
		return false
	}
	if !d.AddUint64(keyTimestamp, uint64(c.Timestamp)) {
		return false
	}
	if !d.AddUint64(keyCredentialTimeMaxDelta, uint64(c.CredentialTimeMaxDelta)) {
		return false
	}
	if !d.AddUint64(keyRevision, c.Revision) {
		return false
	}
	if !d.AddUint64(keyIssuedTo, uint64(c.IssuedTo)) {
		return false
	}
	if !d.AddUint64(keyFlags, c.Flags) {
		return false
	}
	if !d.AddUint64(keyMulticastLimit, uint64(c.MulticastLimit)) {
		return false
	}
	if !d.AddUint64(keyType, uint64(c.Type)) {
		return false
	}
	if !d.AddString(keyName, c.Name) {
		return false
	}

	if includeLegacy && !c.legacyToDictionary(d) {
		return false
	}

	// Then the binary blobs.
	tmp := wire.NewBuffer(DictCapacity)

	if !c.COM.IsZero() {
		if !d.Add(keyCOM, c.COM.Encode(nil, false)) {
			return false
		}
	}

	tmp.Clear()
	for i := range c.Capabilities {
		tmp.AppendBytes(c.Capabilities[i].Encode(nil, false))
	}
	if tmp.Err() != nil {
		return false
	}
	if tmp.Size() > 0 && !d.Add(keyCapabilities, tmp.Data()) {
		return false
	}

	tmp.Clear()
	for i := range c.Tags {
		tmp.AppendBytes(c.Tags[i].Encode(nil, false))
	}
	if tmp.Err() != nil {
		return false
	}
	if tmp.Size() > 0 && !d.Add(keyTags, tmp.Data()) {
		return false
	}

	tmp.Clear()
	for i := range c.CertificatesOfOwnership {
		tmp.AppendBytes(c.CertificatesOfOwnership[i].Encode(nil, false))
	}
	if tmp.Err() != nil {
		return false
	}
	if tmp.Size() > 0 && !d.Add(keyCertificatesOfOwnership, tmp.Data()) {
		return false
	}

	tmp.Clear()
	for _, s := range c.Specialists {
		tmp.AppendUint64(s)
	}
	if tmp.Err() != nil {
		return false
	}
	if tmp.Size() > 0 && !d.Add(keySpecialists, tmp.Data()) {
		return false
	}

	tmp.Clear()
	for i := range c.Routes {
		tmp.AppendInet(c.Routes[i].Target)
		tmp.AppendInet(c.Routes[i].Via)
		tmp.AppendUint16(c.Routes[i].Flags)
		tmp.AppendUint16(c.Routes[i].Metric)
	}
	if tmp.Err() != nil {
		return false
	}
	if tmp.Size() > 0 && !d.Add(keyRoutes, tmp.Data()) {
		return false
	}

	tmp.Clear()
	for i := range c.StaticIPs {
		tmp.AppendInet(c.StaticIPs[i])
	}
	if tmp.Err() != nil {
		return false
	}
	if tmp.Size() > 0 && !d.Add(keyStaticIPs, tmp.Data()) {
		return false
	}

	if len(c.Rules) > 0 {
		if !d.Add(keyRules, credential.AppendRules(nil, c.Rules)) {
			return false
		}
	}

	return true
}

// FromDictionary parses d into the config. On any failure the config is
// zeroed and false is returned.
func (c *Config) FromDictionary(d *dict.Dictionary) bool {
	*c = Config{}

	// Fields that are always present, new or old.
	c.NetworkID = d.GetUint64(keyNetworkID, 0)
	if c.NetworkID == 0 {
		*c = Config{}
		return false
	}
	c.Timestamp = int64(d.GetUint64(keyTimestamp, 0))
	c.CredentialTimeMaxDelta = int64(d.GetUint64(keyCredentialTimeMaxDelta, 0))
	c.Revision = d.GetUint64(keyRevision, 0)
	c.IssuedTo = types.NewAddress(d.GetUint64(keyIssuedTo, 0))
	if c.IssuedTo == 0 {
		*c = Config{}
		return false
	}
	c.MulticastLimit = uint32(d.GetUint64(keyMulticastLimit, 0))
	name := d.GetString(keyName, "")
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	c.Name = name

	if d.GetUint64(keyVersion, 0) < 6 {
		if !c.legacyFromDictionary(d) {
			*c = Config{}
			return false
		}
		return true
	}

	c.Flags = d.GetUint64(keyFlags, 0)
	c.Type = Type(d.GetUint64(keyType, uint64(TypePrivate)))

	if blob, ok := d.Get(keyCOM); ok {
		if _, err := c.COM.Decode(blob); err != nil {
			*c = Config{}
			return false
		}
	}

	if blob, ok := d.Get(keyCapabilities); ok {
		for len(blob) > 0 {
			var cp credential.Capability
			rest, err := cp.Decode(blob)
			if err != nil {
				*c = Config{}
				return false
			}
			blob = rest
			if len(c.Capabilities) < MaxCapabilities {
				c.Capabilities = append(c.Capabilities, cp)
			}
		}
	}

	if blob, ok := d.Get(keyTags); ok {
		for len(blob) > 0 {
			var tag credential.Tag
			rest, err := tag.Decode(blob)
			if err != nil {
				*c = Config{}
				return false
			}
			blob = rest
			if len(c.Tags) < MaxTags {
				c.Tags = append(c.Tags, tag)
			}
		}
	}
	c.sortCredentials()

	if blob, ok := d.Get(keyCertificatesOfOwnership); ok {
		for len(blob) > 0 {
			var coo credential.CertificateOfOwnership
			rest, err := coo.Decode(blob)
			if err != nil {
				*c = Config{}
				return false
			}
			blob = rest
			if len(c.CertificatesOfOwnership) < MaxCertificatesOfOwnership {
				c.CertificatesOfOwnership = append(c.CertificatesOfOwnership, coo)
			}
		}
	}

	if blob, ok := d.Get(keySpecialists); ok {
		for len(blob) >= 8 {
			var s uint64
			wire.ChopUint64(&s, &blob)
			if len(c.Specialists) < MaxSpecialists {
				c.Specialists = append(c.Specialists, s)
			}
		}
	}

	if blob, ok := d.Get(keyRoutes); ok {
		for len(blob) > 0 && len(c.Routes) < MaxRoutes {
			var rt Route
			if !wire.ChopInet(&rt.Target, &blob) ||
				!wire.ChopInet(&rt.Via, &blob) ||
				!wire.ChopUint16(&rt.Flags, &blob) ||
				!wire.ChopUint16(&rt.Metric, &blob) {
				*c = Config{}
				return false
			}
			c.Routes = append(c.Routes, rt)
		}
	}

	if blob, ok := d.Get(keyStaticIPs); ok {
		for len(blob) > 0 && len(c.StaticIPs) < MaxStaticIPs {
			var ip types.InetAddress
			if !wire.ChopInet(&ip, &blob) {
				*c = Config{}
				return false
			}
			c.StaticIPs = append(c.StaticIPs, ip)
		}
	}

	if blob, ok := d.Get(keyRules); ok {
		rules, err := credential.DecodeRules(blob, MaxRules)
		if err != nil {
			*c = Config{}
			return false
		}
		c.Rules = rules
	}

	return true
}
