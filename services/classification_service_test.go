package services

import (
	"strings"
	"testing"

	"battle-league-system/models"
)

func TestSourcePrecedenceOrder(t *testing.T) {
	// wildcard < online < presencial < championship
	for i := 1; i < len(SourcePrecedence); i++ {
		lo, hi := SourcePrecedence[i-1], SourcePrecedence[i]
		if sourceRank(lo) >= sourceRank(hi) {
			t.Errorf("%s should rank below %s", lo, hi)
		}
	}
	if sourceRank("made_up_source") != -1 {
		t.Error("unknown tags must rank lowest")
	}
}

func TestPlanClassificationDualRouteKeepsHighestTag(t *testing.T) {
	// p1 qualifies through the online league AND the championship podium:
	// one registration, tagged with the championship route.
	plan := PlanClassification([]Qualifier{
		{ParticipantID: "p1", DisplayName: "Ana", Source: models.SourceOnlineTop3},
		{ParticipantID: "p1", DisplayName: "Ana", Source: models.SourceChampionshipTop3},
		{ParticipantID: "p2", DisplayName: "Luis", Source: models.SourceWildcard},
	}, nil)

	if len(plan.Registrations) != 2 {
		t.Fatalf("expected 2 registrations, got %d", len(plan.Registrations))
	}
	if plan.Registrations[0].ParticipantID != "p1" || plan.Registrations[0].Source != models.SourceChampionshipTop3 {
		t.Errorf("p1 should carry the championship tag, got %+v", plan.Registrations[0])
	}
	if plan.SourceBreakdown[models.SourceOnlineTop3] != 1 || plan.SourceBreakdown[models.SourceChampionshipTop3] != 1 {
		t.Errorf("breakdown counts every qualification, got %+v", plan.SourceBreakdown)
	}
}

func TestPlanClassificationHighTagNotDemoted(t *testing.T) {
	// Same participant, routes arriving high-first: the later, lower route
	// must not overwrite the tag.
	plan := PlanClassification([]Qualifier{
		{ParticipantID: "p1", Source: models.SourcePresencialTop3},
		{ParticipantID: "p1", Source: models.SourceWildcard},
	}, nil)
	if len(plan.Registrations) != 1 || plan.Registrations[0].Source != models.SourcePresencialTop3 {
		t.Fatalf("tag resolution must not depend on processing order, got %+v", plan.Registrations)
	}
}

func TestPlanClassificationSkipsAlreadyRegistered(t *testing.T) {
	plan := PlanClassification([]Qualifier{
		{ParticipantID: "p1", Source: models.SourceWildcard},
		{ParticipantID: "p2", Source: models.SourceOnlineTop3},
	}, map[string]bool{"p1": true})

	if len(plan.Registrations) != 1 || plan.Registrations[0].ParticipantID != "p2" {
		t.Fatalf("p1 is already in, only p2 should register: %+v", plan.Registrations)
	}
	if len(plan.SkippedExisting) != 1 || plan.SkippedExisting[0] != "p1" {
		t.Fatalf("p1 should be reported as skipped: %+v", plan.SkippedExisting)
	}
	var sawSkip bool
	for _, line := range plan.Log {
		if strings.Contains(line, "skip p1") {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatalf("audit log should mention the skip: %v", plan.Log)
	}
}

func TestPlanClassificationRerunIsNoop(t *testing.T) {
	qualifiers := []Qualifier{
		{ParticipantID: "p1", Source: models.SourceChampionshipTop3},
		{ParticipantID: "p2", Source: models.SourceWildcard},
	}
	first := PlanClassification(qualifiers, nil)

	registered := map[string]bool{}
	for _, r := range first.Registrations {
		registered[r.ParticipantID] = true
	}
	second := PlanClassification(qualifiers, registered)
	if len(second.Registrations) != 0 {
		t.Fatalf("a re-run after success must register nobody, got %+v", second.Registrations)
	}
	if len(second.SkippedExisting) != 2 {
		t.Fatalf("both participants should be skipped on re-run, got %+v", second.SkippedExisting)
	}
}

func TestPlanClassificationPrefersNonEmptyName(t *testing.T) {
	plan := PlanClassification([]Qualifier{
		{ParticipantID: "p1", DisplayName: "", Source: models.SourceWildcard},
		{ParticipantID: "p1", DisplayName: "Carmen", Source: models.SourceOnlineTop3},
	}, nil)
	if plan.Registrations[0].DisplayName != "Carmen" {
		t.Fatalf("a later route's name should fill an empty one, got %q", plan.Registrations[0].DisplayName)
	}
}

func TestFoldDisplayName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"MARÍA JOSÉ", "María José"},
		{"el niño", "El Niño"},
		{"ana", "Ana"},
	}
	for _, tc := range cases {
		if got := foldDisplayName(tc.in); got != tc.want {
			t.Errorf("foldDisplayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
