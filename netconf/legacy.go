package netconf

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/weftnet/weft/credential"
	"github.com/weftnet/weft/dict"
	"github.com/weftnet/weft/types"
)

// supportLegacyNetconf compiles in the v<6 dictionary fallback. Builds for
// modern-only deployments can switch this off to drop the old parse path.
const supportLegacyNetconf = true

// Deprecated dictionary keys, emitted only when old clients ask for them.
const (
	legacyKeyAllowPassiveBridging = "pb"
	legacyKeyEnableBroadcast      = "eb"
	legacyKeyIPv4Static           = "v4s"
	legacyKeyIPv6Static           = "v6s"
	legacyKeyPrivate              = "p"
	legacyKeyAllowedEtherTypes    = "et"
	legacyKeyCOM                  = "com"
	legacyKeyActiveBridges        = "ab"
	// legacyKeyRelays is obsolete; it is never written and ignored on read.
	legacyKeyRelays = "rl"
)

// legacyEtherTypes extracts the allowed ether types from a rules list by
// pairing each MATCH_ETHERTYPE (or other sub-32 entry) with the ACTION_ACCEPT
// that follows it. Any other intervening match breaks the pair; unrecognized
// types produce nothing.
func legacyEtherTypes(rules []credential.Rule) []uint16 {
	var ets []uint16
	var et uint16
	lastKind := credential.RuleActionAccept
	for i := range rules {
		kind := rules[i].Kind()
		if kind == credential.RuleMatchEtherType {
			et = rules[i].EtherType()
		} else if kind == credential.RuleActionAccept {
			if lastKind < 32 || lastKind == credential.RuleMatchEtherType {
				ets = append(ets, et)
			}
			et = 0
		}
		lastKind = kind
	}
	return ets
}

func (c *Config) legacyToDictionary(d *dict.Dictionary) bool {
	if !supportLegacyNetconf {
		return true
	}
	if !d.AddBool(legacyKeyAllowPassiveBridging, c.AllowPassiveBridging()) {
		return false
	}
	if !d.AddBool(legacyKeyEnableBroadcast, c.EnableBroadcast()) {
		return false
	}
	if !d.AddBool(legacyKeyPrivate, c.IsPrivate()) {
		return false
	}

	var v4s, v6s []string
	for i := range c.StaticIPs {
		switch c.StaticIPs[i].Family {
		case types.FamilyIPv4:
			v4s = append(v4s, c.StaticIPs[i].String())
		case types.FamilyIPv6:
			v6s = append(v6s, c.StaticIPs[i].String())
		}
	}
	if len(v4s) > 0 && !d.AddString(legacyKeyIPv4Static, strings.Join(v4s, ",")) {
		return false
	}
	if len(v6s) > 0 && !d.AddString(legacyKeyIPv6Static, strings.Join(v6s, ",")) {
		return false
	}

	if ets := legacyEtherTypes(c.Rules); len(ets) > 0 {
		strs := make([]string, 0, len(ets))
		for _, et := range ets {
			strs = append(strs, strconv.FormatUint(uint64(et), 16))
		}
		if !d.AddString(legacyKeyAllowedEtherTypes, strings.Join(strs, ",")) {
			return false
		}
	}

	if !c.COM.IsZero() {
		if !d.AddString(legacyKeyCOM, hex.EncodeToString(c.COM.Encode(nil, false))) {
			return false
		}
	}

	var ab []string
	for _, a := range c.ActiveBridges() {
		ab = append(ab, a.String())
	}
	if len(ab) > 0 && !d.AddString(legacyKeyActiveBridges, strings.Join(ab, ",")) {
		return false
	}

	return true
}

func (c *Config) legacyFromDictionary(d *dict.Dictionary) bool {
	if !supportLegacyNetconf {
		return false
	}

	if d.GetBool(legacyKeyAllowPassiveBridging, false) {
		c.Flags |= FlagAllowPassiveBridging
	}
	if d.GetBool(legacyKeyEnableBroadcast, false) {
		c.Flags |= FlagEnableBroadcast
	}
	// Old-style configs predate NDP emulation control, so it stays on.
	c.Flags |= FlagEnableIPv6NDPEmulation
	if d.GetBool(legacyKeyPrivate, true) {
		c.Type = TypePrivate
	} else {
		c.Type = TypePublic
	}

	for _, key := range []string{legacyKeyIPv4Static, legacyKeyIPv6Static} {
		s := d.GetString(key, "")
		if len(s) == 0 {
			continue
		}
		for _, f := range strings.Split(s, ",") {
			if len(c.StaticIPs) >= MaxStaticIPs {
				break
			}
			ip, ok := types.ParseInetAddress(f)
			if !ok {
				continue
			}
			if !ip.IsNetwork() {
				c.StaticIPs = append(c.StaticIPs, ip)
			}
		}
	}

	if s := d.GetString(legacyKeyCOM, ""); len(s) > 0 {
		if raw, err := hex.DecodeString(s); err == nil {
			c.COM.Decode(raw)
		}
	}

	if s := d.GetString(legacyKeyAllowedEtherTypes, ""); len(s) > 0 {
		for _, f := range strings.Split(s, ",") {
			if len(c.Rules)+2 > MaxRules {
				break
			}
			et, err := strconv.ParseUint(f, 16, 64)
			if err != nil {
				continue
			}
			if et&0xffff > 0 {
				c.Rules = append(c.Rules, credential.EtherTypeRule(uint16(et)))
			}
			c.Rules = append(c.Rules, credential.Rule{Type: credential.RuleActionAccept})
		}
	} else {
		c.Rules = []credential.Rule{{Type: credential.RuleActionAccept}}
	}

	if s := d.GetString(legacyKeyActiveBridges, ""); len(s) > 0 {
		for _, f := range strings.Split(s, ",") {
			if a, ok := types.ParseAddress(f); ok {
				c.AddSpecialist(a, SpecialistTypeActiveBridge)
			}
		}
	}

	return true
}
