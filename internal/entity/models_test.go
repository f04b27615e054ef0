package entity

import "testing"

func intp(v int) *int { return &v }

func TestKeepKnown(t *testing.T) {
	prev := Creature{EncounterID: "e1", Attack: intp(15), Defense: intp(14), Stamina: intp(13), CP: intp(900), Form: intp(1)}

	got := Creature{EncounterID: "e1", CP: intp(950)}.KeepKnown(prev)
	if !got.HasSubStats() || *got.Attack != 15 {
		t.Errorf("sub-stats not kept: %+v", got)
	}
	if *got.CP != 950 {
		t.Errorf("CP = %d, want the newer 950", *got.CP)
	}
	if got.Form == nil || *got.Form != 1 {
		t.Errorf("form not kept")
	}

	partial := Creature{Attack: intp(1)}.KeepKnown(prev)
	if *partial.Attack != 1 || partial.Defense != nil {
		t.Errorf("partial sub-stats mixed with previous: %+v", partial)
	}
}
