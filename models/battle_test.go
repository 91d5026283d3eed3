package models

import (
	"reflect"
	"strings"
	"testing"
)

// One battle per (event, category, phase, order) is a schema constraint, not
// just a generation-time guard: a concurrent generation racing past the count
// check must be rejected by the database.
func TestBattleColumnSlotIsUnique(t *testing.T) {
	typ := reflect.TypeOf(Battle{})
	for _, name := range []string{"EventID", "CategoryID", "Phase", "OrderIndex"} {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("Battle has no field %s", name)
		}
		if !strings.Contains(field.Tag.Get("gorm"), "uniqueIndex:idx_battle_order") {
			t.Errorf("%s must be part of the idx_battle_order unique index", name)
		}
	}
}

func TestBattleHasParticipant(t *testing.T) {
	a, b := "pA", "pB"
	battle := Battle{SlotAID: &a, SlotBID: &b}
	if !battle.HasParticipant("pA") || !battle.HasParticipant("pB") {
		t.Error("both slot occupants are participants")
	}
	if battle.HasParticipant("pC") {
		t.Error("pC is not in this battle")
	}
	var empty Battle
	if empty.HasParticipant("pA") {
		t.Error("an empty battle has no participants")
	}
}
