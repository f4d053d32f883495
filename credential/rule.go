package credential

import (
	"github.com/weftnet/weft/types"
	"github.com/weftnet/weft/wire"
)

// RuleType identifies a filter rule. Values below 32 are actions or legacy
// matches; MATCH entries pair with the following ACTION entry.
type RuleType uint8

const (
	RuleActionDrop     RuleType = 0
	RuleActionAccept   RuleType = 1
	RuleActionTee      RuleType = 2
	RuleActionWatch    RuleType = 3
	RuleActionRedirect RuleType = 4
	RuleActionBreak    RuleType = 5

	RuleMatchSourceAddress RuleType = 24
	RuleMatchDestAddress   RuleType = 25
	RuleMatchVlanID        RuleType = 26
	RuleMatchVlanPCP       RuleType = 27
	RuleMatchVlanDEI       RuleType = 28
	RuleMatchMACSource     RuleType = 29
	RuleMatchMACDest       RuleType = 30
	RuleMatchEtherType     RuleType = 31
	RuleMatchIPv4Source    RuleType = 32
	RuleMatchIPv4Dest      RuleType = 33
)

// ruleTypeMask strips the NOT/OR combinator bits from a serialized type.
const ruleTypeMask = 0x7f

// Rule is a single filter rule entry. Type carries the raw serialized type
// byte (combinator bits included); Value carries the type-specific value
// bytes, preserved verbatim for types this code does not interpret.
type Rule struct {
	Type  RuleType
	Value []byte
}

// Kind returns the rule type with combinator bits stripped.
func (r *Rule) Kind() RuleType {
	return r.Type & ruleTypeMask
}

// EtherTypeRule builds a MATCH_ETHERTYPE rule.
func EtherTypeRule(etherType uint16) Rule {
	return Rule{
		Type:  RuleMatchEtherType,
		Value: wire.AppendUint16(nil, etherType),
	}
}

// EtherType decodes the value of a MATCH_ETHERTYPE rule, or 0.
func (r *Rule) EtherType() uint16 {
	if r.Kind() != RuleMatchEtherType {
		return 0
	}
	et, _ := wire.At16(r.Value, 0)
	return et
}

// AppendRules serializes a rule list: one type byte and a length-prefixed
// value blob per rule.
func AppendRules(out []byte, rules []Rule) []byte {
	for i := range rules {
		out = wire.AppendUint8(out, uint8(rules[i].Type))
		out = wire.AppendUint8(out, uint8(len(rules[i].Value)))
		out = append(out, rules[i].Value...)
	}
	return out
}

// DecodeRules parses serialized rules. Entries beyond max are consumed but
// silently discarded, for compatibility with controllers that send more
// than this build supports.
func DecodeRules(data []byte, max int) ([]Rule, error) {
	var rules []Rule
	for len(data) > 0 {
		var t, vl uint8
		if !wire.ChopUint8(&t, &data) || !wire.ChopUint8(&vl, &data) {
			return nil, types.ErrDecode
		}
		var value []byte
		if !wire.ChopBytes(&value, &data, int(vl)) {
			return nil, types.ErrDecode
		}
		if len(rules) < max {
			rules = append(rules, Rule{Type: RuleType(t), Value: value})
		}
	}
	return rules, nil
}
