package services

import (
	"errors"
	"fmt"
	"testing"

	"battle-league-system/models"
)

func rankingOf(n int) []RankedEntry {
	entries := make([]RankedEntry, n)
	for i := range entries {
		entries[i] = RankedEntry{
			ParticipantID: fmt.Sprintf("p%02d", i+1),
			AvgScore:      float64(100 - i),
		}
	}
	return entries
}

func TestPlanBracketSeedsTopAgainstBottom(t *testing.T) {
	battles, err := PlanBracket("ev1", "cat1", models.PhaseRoundOf16, 16, rankingOf(16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(battles) != 8 {
		t.Fatalf("size 16 must yield 8 battles, got %d", len(battles))
	}
	// Rank i meets rank size-1-i: #1↔#16, #2↔#15, … #8↔#9.
	for i, b := range battles {
		wantA := fmt.Sprintf("p%02d", i+1)
		wantB := fmt.Sprintf("p%02d", 16-i)
		if *b.SlotAID != wantA || *b.SlotBID != wantB {
			t.Errorf("battle %d pairs %s vs %s, want %s vs %s", i+1, *b.SlotAID, *b.SlotBID, wantA, wantB)
		}
		if b.OrderIndex != i+1 {
			t.Errorf("battle %d has order index %d", i+1, b.OrderIndex)
		}
		if b.Phase != models.PhaseRoundOf16 {
			t.Errorf("battle %d has phase %s", i+1, b.Phase)
		}
	}
}

func TestPlanBracketInsufficientParticipants(t *testing.T) {
	_, err := PlanBracket("ev1", "cat1", models.PhaseRoundOf16, 16, rankingOf(10))
	if !errors.Is(err, ErrInsufficientParticipants) {
		t.Fatalf("10 ranked participants cannot fill a 16-bracket, got err = %v", err)
	}
}

func TestPlanBracketRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, 4, 12, 64} {
		if _, err := PlanBracket("ev1", "cat1", models.PhaseRoundOf32, size, rankingOf(64)); err == nil {
			t.Errorf("size %d should be rejected", size)
		}
	}
}

func TestPlanBracketRejectsNonEliminationPhase(t *testing.T) {
	if _, err := PlanBracket("ev1", "cat1", models.PhasePreliminary, 8, rankingOf(8)); err == nil {
		t.Error("preliminary is not a bracket column")
	}
	if _, err := PlanBracket("ev1", "cat1", models.PhaseThirdPlace, 8, rankingOf(8)); err == nil {
		t.Error("third place is played, never seeded")
	}
}

func TestPlanBracketSizeMustMatchOpeningColumn(t *testing.T) {
	if _, err := PlanBracket("ev1", "cat1", models.PhaseQuarterfinal, 16, rankingOf(16)); err == nil {
		t.Error("a 16-bracket opens at round_of_16, not quarterfinal")
	}
	if _, err := PlanBracket("ev1", "cat1", models.PhaseQuarterfinal, 8, rankingOf(8)); err != nil {
		t.Errorf("an 8-bracket opens at quarterfinal: %v", err)
	}
	if _, err := PlanBracket("ev1", "cat1", models.PhaseRoundOf32, 32, rankingOf(32)); err != nil {
		t.Errorf("a 32-bracket opens at round_of_32: %v", err)
	}
}

func TestSuccessorOrder(t *testing.T) {
	cases := []struct{ from, want int }{
		{1, 1}, {2, 1},
		{3, 2}, {4, 2},
		{5, 3}, {6, 3},
		{7, 4}, {8, 4},
	}
	for _, tc := range cases {
		if got := SuccessorOrder(tc.from); got != tc.want {
			t.Errorf("SuccessorOrder(%d) = %d, want %d", tc.from, got, tc.want)
		}
	}
}

func decidedBattle(phase models.Phase, order int, slotA, slotB, winner string) *models.Battle {
	return &models.Battle{
		ID:         fmt.Sprintf("battle-%s-%d", phase, order),
		EventID:    "ev1",
		CategoryID: "cat1",
		Phase:      phase,
		OrderIndex: order,
		SlotAID:    &slotA,
		SlotBID:    &slotB,
		WinnerID:   &winner,
	}
}

func TestPlanAdvanceOrdinaryBattle(t *testing.T) {
	targets, err := planAdvance(decidedBattle(models.PhaseQuarterfinal, 3, "pA", "pB", "pA"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("a quarterfinal sends exactly its winner onward, got %+v", targets)
	}
	if targets[0].Phase != models.PhaseSemifinal || targets[0].OrderIndex != 2 || targets[0].ParticipantID != "pA" {
		t.Fatalf("quarterfinal #3 winner should land in semifinal #2, got %+v", targets[0])
	}
}

func TestPlanAdvanceTerminalBattles(t *testing.T) {
	for _, phase := range []models.Phase{models.PhaseFinal, models.PhaseThirdPlace} {
		targets, err := planAdvance(decidedBattle(phase, 1, "pA", "pB", "pB"))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", phase, err)
		}
		if len(targets) != 0 {
			t.Errorf("%s has no successor, got %+v", phase, targets)
		}
	}
}

func TestPlanAdvanceSemifinalFanOut(t *testing.T) {
	targets, err := planAdvance(decidedBattle(models.PhaseSemifinal, 1, "pA", "pB", "pA"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("a semifinal places winner and loser, got %+v", targets)
	}
	if targets[0].Phase != models.PhaseFinal || targets[0].ParticipantID != "pA" {
		t.Errorf("winner should head to the final, got %+v", targets[0])
	}
	if targets[1].Phase != models.PhaseThirdPlace || targets[1].ParticipantID != "pB" {
		t.Errorf("loser should head to the third-place battle, got %+v", targets[1])
	}
}

func TestPlanAdvanceSemifinalWinnerOutsideSlots(t *testing.T) {
	if _, err := planAdvance(decidedBattle(models.PhaseSemifinal, 1, "pA", "pB", "ghost")); err == nil {
		t.Fatal("a winner occupying neither slot is corrupt and must error")
	}
}

// apply mirrors fillSlot's write without the database.
func applySlot(dest *models.Battle, participantID string) error {
	column, err := pickSlot(dest, participantID)
	if err != nil || column == "" {
		return err
	}
	p := participantID
	if column == "slot_a_id" {
		dest.SlotAID = &p
	} else {
		dest.SlotBID = &p
	}
	return nil
}

func TestSemifinalWinnersFillDistinctFinalSlots(t *testing.T) {
	semi1 := decidedBattle(models.PhaseSemifinal, 1, "pA", "pB", "pA")
	semi2 := decidedBattle(models.PhaseSemifinal, 2, "pC", "pD", "pD")
	final := &models.Battle{Phase: models.PhaseFinal, OrderIndex: 1}
	third := &models.Battle{Phase: models.PhaseThirdPlace, OrderIndex: 1}

	for _, semi := range []*models.Battle{semi1, semi2} {
		targets, err := planAdvance(semi)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, tg := range targets {
			dest := final
			if tg.Phase == models.PhaseThirdPlace {
				dest = third
			}
			if err := applySlot(dest, tg.ParticipantID); err != nil {
				t.Fatalf("placing %s into %s: %v", tg.ParticipantID, tg.Phase, err)
			}
		}
	}

	if final.SlotAID == nil || final.SlotBID == nil || *final.SlotAID == *final.SlotBID {
		t.Fatalf("the two semifinal winners must occupy the two distinct final slots, got %+v", final)
	}
	if *final.SlotAID != "pA" || *final.SlotBID != "pD" {
		t.Errorf("final holds %s vs %s, want pA vs pD", *final.SlotAID, *final.SlotBID)
	}
	if third.SlotAID == nil || third.SlotBID == nil || *third.SlotAID == *third.SlotBID {
		t.Fatalf("the two semifinal losers must occupy the two distinct third-place slots, got %+v", third)
	}
	if *third.SlotAID != "pB" || *third.SlotBID != "pC" {
		t.Errorf("third place holds %s vs %s, want pB vs pC", *third.SlotAID, *third.SlotBID)
	}
}

func TestPickSlotIdempotentRerun(t *testing.T) {
	dest := &models.Battle{Phase: models.PhaseFinal, OrderIndex: 1}
	if err := applySlot(dest, "pA"); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	// Re-running the same placement must be a no-op, not a duplicate.
	column, err := pickSlot(dest, "pA")
	if err != nil || column != "" {
		t.Fatalf("re-run should no-op, got column %q err %v", column, err)
	}
	if err := applySlot(dest, "pB"); err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if _, err := pickSlot(dest, "pC"); err == nil {
		t.Fatal("a third participant cannot enter a two-slot battle")
	}
}

func TestBattleLoser(t *testing.T) {
	if got := battleLoser(decidedBattle(models.PhaseSemifinal, 1, "pA", "pB", "pA")); got != "pB" {
		t.Errorf("loser = %q, want pB", got)
	}
	if got := battleLoser(decidedBattle(models.PhaseSemifinal, 1, "pA", "pB", "pB")); got != "pA" {
		t.Errorf("loser = %q, want pA", got)
	}
	if got := battleLoser(decidedBattle(models.PhaseSemifinal, 1, "pA", "pB", "ghost")); got != "" {
		t.Errorf("loser = %q, want empty for a winner outside both slots", got)
	}
	if got := battleLoser(&models.Battle{}); got != "" {
		t.Errorf("loser = %q, want empty for an undecided battle", got)
	}
}
