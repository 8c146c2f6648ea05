package market

import (
	"encoding/json"
	"testing"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw  string
		want Condition
	}{
		{"Mint (M)", ConditionMint},
		{"Near Mint (NM or M-)", ConditionNearMint},
		{"Very Good Plus (VG+)", ConditionVeryGoodPlus},
		{"Very Good (VG)", ConditionVeryGood},
		{"Good Plus (G+)", ConditionGoodPlus},
		{"Good (G)", ConditionGood},
		{"Fair (F)", ConditionFair},
		{"Poor (P)", ConditionPoor},
		{"VG+", ConditionVeryGoodPlus},
		{"  vg+ ", ConditionVeryGoodPlus},
		{"NM", ConditionNearMint},
		{"M-", ConditionNearMint},
		{"near mint", ConditionNearMint},
		{"Good+", ConditionGoodPlus},
		{"Generic", ConditionUnknown},
		{"Not Graded", ConditionUnknown},
		{"No Cover", ConditionUnknown},
		{"", ConditionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseCondition(tt.raw); got != tt.want {
				t.Errorf("ParseCondition(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCondition_ScaleOrder(t *testing.T) {
	scale := []Condition{
		ConditionPoor, ConditionFair, ConditionGood, ConditionGoodPlus,
		ConditionVeryGood, ConditionVeryGoodPlus, ConditionNearMint, ConditionMint,
	}
	for i := 1; i < len(scale); i++ {
		if !(scale[i] > scale[i-1]) {
			t.Fatalf("%s should rank above %s", scale[i].Abbrev(), scale[i-1].Abbrev())
		}
		if !scale[i].AtLeast(scale[i-1]) || scale[i-1].AtLeast(scale[i]) {
			t.Errorf("AtLeast ordering broken between %s and %s", scale[i-1].Abbrev(), scale[i].Abbrev())
		}
	}
}

func TestCondition_TextRoundTrip(t *testing.T) {
	var c Condition
	if err := json.Unmarshal([]byte(`"Very Good Plus (VG+)"`), &c); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if c != ConditionVeryGoodPlus {
		t.Fatalf("got %v, want VG+", c)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `"VG+"` {
		t.Errorf("Marshal = %s, want \"VG+\"", data)
	}

	if err := json.Unmarshal([]byte(`"shiny"`), &c); err == nil {
		t.Error("expected error for unknown grade")
	}
	if err := json.Unmarshal([]byte(`""`), &c); err != nil || c != ConditionUnknown {
		t.Errorf("empty grade: c = %v, err = %v", c, err)
	}
}
