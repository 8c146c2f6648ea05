package market

import (
	"fmt"
	"strings"
)

// Condition is a media or sleeve grade on the fixed 8-point scale.
// The zero value means the grade is absent or not on the scale
// (e.g. "Generic" or "Not Graded" sleeves).
type Condition int

// Grades in ascending order.
const (
	ConditionUnknown Condition = iota
	ConditionPoor
	ConditionFair
	ConditionGood
	ConditionGoodPlus
	ConditionVeryGood
	ConditionVeryGoodPlus
	ConditionNearMint
	ConditionMint
)

var conditionNames = [...]string{
	ConditionUnknown:      "",
	ConditionPoor:         "Poor (P)",
	ConditionFair:         "Fair (F)",
	ConditionGood:         "Good (G)",
	ConditionGoodPlus:     "Good Plus (G+)",
	ConditionVeryGood:     "Very Good (VG)",
	ConditionVeryGoodPlus: "Very Good Plus (VG+)",
	ConditionNearMint:     "Near Mint (NM or M-)",
	ConditionMint:         "Mint (M)",
}

var conditionAbbrev = [...]string{
	ConditionUnknown:      "",
	ConditionPoor:         "P",
	ConditionFair:         "F",
	ConditionGood:         "G",
	ConditionGoodPlus:     "G+",
	ConditionVeryGood:     "VG",
	ConditionVeryGoodPlus: "VG+",
	ConditionNearMint:     "NM",
	ConditionMint:         "M",
}

// conditionMap maps normalized grade spellings to the scale.
var conditionMap = map[string]Condition{
	"p":              ConditionPoor,
	"poor":           ConditionPoor,
	"f":              ConditionFair,
	"fair":           ConditionFair,
	"g":              ConditionGood,
	"good":           ConditionGood,
	"g+":             ConditionGoodPlus,
	"good+":          ConditionGoodPlus,
	"good plus":      ConditionGoodPlus,
	"vg":             ConditionVeryGood,
	"very good":      ConditionVeryGood,
	"vg+":            ConditionVeryGoodPlus,
	"very good+":     ConditionVeryGoodPlus,
	"very good plus": ConditionVeryGoodPlus,
	"nm":             ConditionNearMint,
	"m-":             ConditionNearMint,
	"nm or m-":       ConditionNearMint,
	"near mint":      ConditionNearMint,
	"m":              ConditionMint,
	"mint":           ConditionMint,
}

// ParseCondition maps a grade in any common spelling ("VG+",
// "Very Good Plus (VG+)", "near mint") to the scale. Unrecognized or empty
// input yields ConditionUnknown.
func ParseCondition(raw string) Condition {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ConditionUnknown
	}
	if c, ok := conditionMap[s]; ok {
		return c
	}

	// "Very Good Plus (VG+)": try the parenthesized abbreviation, then the words.
	if open := strings.Index(s, "("); open >= 0 {
		if end := strings.Index(s[open:], ")"); end > 0 {
			if c, ok := conditionMap[strings.TrimSpace(s[open+1:open+end])]; ok {
				return c
			}
		}
		if c, ok := conditionMap[strings.TrimSpace(s[:open])]; ok {
			return c
		}
	}
	return ConditionUnknown
}

// Known reports whether the grade is on the scale.
func (c Condition) Known() bool {
	return c > ConditionUnknown && c <= ConditionMint
}

// AtLeast reports whether c ranks at or above min.
func (c Condition) AtLeast(min Condition) bool {
	return c >= min
}

// String returns the long grade name.
func (c Condition) String() string {
	if !c.Known() {
		return ""
	}
	return conditionNames[c]
}

// Abbrev returns the short grade ("VG+").
func (c Condition) Abbrev() string {
	if !c.Known() {
		return ""
	}
	return conditionAbbrev[c]
}

// MarshalText encodes the grade by its abbreviation.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.Abbrev()), nil
}

// UnmarshalText accepts any spelling ParseCondition understands.
// Empty input decodes to ConditionUnknown.
func (c *Condition) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*c = ConditionUnknown
		return nil
	}
	parsed := ParseCondition(string(text))
	if parsed == ConditionUnknown {
		return fmt.Errorf("unknown condition %q", string(text))
	}
	*c = parsed
	return nil
}
