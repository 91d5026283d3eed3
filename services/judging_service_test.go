package services

import (
	"context"
	"errors"
	"testing"

	"battle-league-system/models"
)

func battleScore(judge, participant string, round int, total float64) models.Score {
	return models.Score{
		JudgeID:       judge,
		ParticipantID: participant,
		Round:         round,
		TotalScore:    total,
		Status:        models.ScoreStatusSubmitted,
	}
}

func fullSheet(judgeTotals map[string][2]float64, participant string) []models.Score {
	var out []models.Score
	for judge, totals := range judgeTotals {
		out = append(out, battleScore(judge, participant, 1, totals[0]))
		out = append(out, battleScore(judge, participant, 2, totals[1]))
	}
	return out
}

func TestTallyVotesMajorityWins(t *testing.T) {
	// judge1 favors A (50 vs 40), judge2 favors B (30 vs 45), judge3 favors B
	// (20 vs 60): B wins 2-1 even though a raw point sum would be close.
	scores := append(
		fullSheet(map[string][2]float64{"j1": {25, 25}, "j2": {15, 15}, "j3": {10, 10}}, "A"),
		fullSheet(map[string][2]float64{"j1": {20, 20}, "j2": {22, 23}, "j3": {30, 30}}, "B")...,
	)
	tally, err := TallyVotes(scores, []string{"j1", "j2", "j3"}, "A", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tally.WinnerID != "B" || tally.WinnerVotes != 2 || tally.LoserVotes != 1 {
		t.Fatalf("got %+v, want B winning 2-1", tally)
	}
}

func TestTallyVotesIncompleteJudging(t *testing.T) {
	// j2's round 2 sheet for B is missing: 7 of 8 sheets present.
	scores := append(
		fullSheet(map[string][2]float64{"j1": {25, 25}, "j2": {15, 15}}, "A"),
		fullSheet(map[string][2]float64{"j1": {20, 20}}, "B")...,
	)
	scores = append(scores, battleScore("j2", "B", 1, 22))
	if _, err := TallyVotes(scores, []string{"j1", "j2"}, "A", "B"); !errors.Is(err, ErrIncompleteJudging) {
		t.Fatalf("missing round must refuse the tally, got %v", err)
	}
}

func TestTallyVotesDraftsDoNotCount(t *testing.T) {
	scores := append(
		fullSheet(map[string][2]float64{"j1": {25, 25}}, "A"),
		fullSheet(map[string][2]float64{"j1": {20, 20}}, "B")...,
	)
	scores[0].Status = models.ScoreStatusDraft
	if _, err := TallyVotes(scores, []string{"j1"}, "A", "B"); !errors.Is(err, ErrIncompleteJudging) {
		t.Fatalf("a draft sheet is not a submitted sheet, got %v", err)
	}
}

func TestTallyVotesJudgeAbstainsOnEqualSums(t *testing.T) {
	// j1: 50 vs 50 abstains; j2 decides alone.
	scores := append(
		fullSheet(map[string][2]float64{"j1": {25, 25}, "j2": {10, 10}}, "A"),
		fullSheet(map[string][2]float64{"j1": {30, 20}, "j2": {15, 15}}, "B")...,
	)
	tally, err := TallyVotes(scores, []string{"j1", "j2"}, "A", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tally.WinnerID != "B" || tally.WinnerVotes != 1 || tally.LoserVotes != 0 {
		t.Fatalf("got %+v, want B 1-0 with j1 abstaining", tally)
	}
}

func TestTallyVotesTied(t *testing.T) {
	// j1 votes A, j2 votes B.
	scores := append(
		fullSheet(map[string][2]float64{"j1": {30, 30}, "j2": {10, 10}}, "A"),
		fullSheet(map[string][2]float64{"j1": {20, 20}, "j2": {25, 25}}, "B")...,
	)
	if _, err := TallyVotes(scores, []string{"j1", "j2"}, "A", "B"); !errors.Is(err, ErrVotesTied) {
		t.Fatalf("an even vote must surface the tie, got %v", err)
	}
}

func TestTallyVotesNoAssignedJudges(t *testing.T) {
	if _, err := TallyVotes(nil, nil, "A", "B"); !errors.Is(err, ErrIncompleteJudging) {
		t.Fatalf("no assigned judges can never decide a battle, got %v", err)
	}
}

func TestValidateDetails(t *testing.T) {
	criterios := []models.Criterio{
		{ID: "c1", Name: "Técnica", MaxScore: 10},
		{ID: "c2", Name: "Musicalidad", MaxScore: 10},
	}
	cases := []struct {
		name    string
		details []ScoreDetailInput
		wantErr bool
	}{
		{"valid", []ScoreDetailInput{{"c1", 7.5}, {"c2", 10}}, false},
		{"empty", nil, true},
		{"unknown criterio", []ScoreDetailInput{{"c9", 5}}, true},
		{"duplicate criterio", []ScoreDetailInput{{"c1", 5}, {"c1", 6}}, true},
		{"above max", []ScoreDetailInput{{"c1", 10.5}}, true},
		{"negative", []ScoreDetailInput{{"c1", -1}}, true},
		{"at bounds", []ScoreDetailInput{{"c1", 0}, {"c2", 10}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDetails(tc.details, criterios)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestAutosaveRegistryNewerWriteCancelsOlder(t *testing.T) {
	r := newAutosaveRegistry()
	key := sessionKey("j1", "b1", "p1", 1)

	ctx1, done1 := r.Begin(key)
	ctx2, done2 := r.Begin(key)

	if ctx1.Err() == nil {
		t.Fatal("beginning a newer autosave must cancel the older one")
	}
	if ctx2.Err() != nil {
		t.Fatal("the newest autosave must stay live")
	}
	done1()
	if ctx2.Err() != nil {
		t.Fatal("finishing the superseded write must not touch the newer one")
	}
	done2()
	if !errors.Is(ctx2.Err(), context.Canceled) {
		t.Fatal("done should release the write context")
	}
}

func TestAutosaveRegistryCancelOnSubmit(t *testing.T) {
	r := newAutosaveRegistry()
	key := sessionKey("j1", "b1", "p1", 2)

	ctx, done := r.Begin(key)
	defer done()

	r.Cancel(key) // the submit path
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("a submit must cancel the session's pending autosave")
	}
}

func TestAutosaveRegistrySessionsAreIndependent(t *testing.T) {
	r := newAutosaveRegistry()
	ctxA, doneA := r.Begin(sessionKey("j1", "b1", "p1", 1))
	ctxB, doneB := r.Begin(sessionKey("j2", "b1", "p1", 1))
	defer doneA()
	defer doneB()

	r.Cancel(sessionKey("j1", "b1", "p1", 1))
	if ctxA.Err() == nil {
		t.Fatal("cancelled session should be cancelled")
	}
	if ctxB.Err() != nil {
		t.Fatal("another judge's session must be unaffected")
	}
}
