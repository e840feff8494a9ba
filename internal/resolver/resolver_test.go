package resolver

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/strataops/vantage/internal/domain"
)

func proposal(resource string, action domain.ActionType, prio domain.PriorityDomain, confidence float64) domain.ChangeProposal {
	return domain.ChangeProposal{
		ID:         uuid.New(),
		AgentID:    uuid.New(),
		ResourceID: resource,
		Action:     action,
		Domain:     prio,
		Confidence: confidence,
		Status:     domain.ProposalStatusPending,
	}
}

func TestRank_FixedOrdering(t *testing.T) {
	if Rank(domain.DomainApplication) >= Rank(domain.DomainPerformance) {
		t.Fatal("application must outrank performance")
	}
	if Rank(domain.DomainPerformance) >= Rank(domain.DomainResource) {
		t.Fatal("performance must outrank resource")
	}
	if Rank(domain.DomainResource) >= Rank(domain.DomainCost) {
		t.Fatal("resource must outrank cost")
	}
	if Rank("made_up") <= Rank(domain.DomainCost) {
		t.Fatal("unknown domains must rank below every known one")
	}
}

func TestConflicts_Table(t *testing.T) {
	cases := []struct {
		a, b domain.ActionType
		want bool
	}{
		{domain.ActionTerminate, domain.ActionRightSize, true},
		{domain.ActionKeep, domain.ActionTerminate, true},
		{domain.ActionKeep, domain.ActionReconfigure, true},
		{domain.ActionScaleUp, domain.ActionScaleDown, true},
		{domain.ActionRightSize, domain.ActionScaleDown, true},
		{domain.ActionRightSize, domain.ActionRightSize, true},
		{domain.ActionRightSize, domain.ActionReconfigure, false},
		{domain.ActionMigrate, domain.ActionReconfigure, false},
		{domain.ActionScaleDown, domain.ActionMigrate, false},
		{"mystery_action", domain.ActionReconfigure, true},
	}
	for _, tc := range cases {
		if got := Conflicts(tc.a, tc.b); got != tc.want {
			t.Errorf("Conflicts(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := Conflicts(tc.b, tc.a); got != tc.want {
			t.Errorf("Conflicts(%s, %s) must be symmetric", tc.b, tc.a)
		}
	}
}

func TestResolve_ApplicationBeatsCostRegardlessOfConfidence(t *testing.T) {
	// Scenario from the coordination policy: a cost agent wants to
	// terminate with high confidence, the application agent wants to keep
	// with low confidence. Application wins, always.
	terminate := proposal("llm-pool-1", domain.ActionTerminate, domain.DomainCost, 0.9)
	keep := proposal("llm-pool-1", domain.ActionKeep, domain.DomainApplication, 0.5)

	res := Resolve([]domain.ChangeProposal{terminate, keep})

	if len(res.Plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(res.Plans))
	}
	plan := res.Plans[0]
	if len(plan.Steps) != 1 || plan.Steps[0].ID != keep.ID {
		t.Fatalf("expected the application proposal to win, got %+v", plan.Steps)
	}
	if plan.Status != domain.PlanStatusPendingApproval {
		t.Fatalf("new plans must await approval, got %s", plan.Status)
	}
	if len(res.Superseded) != 1 || res.Superseded[0].ID != terminate.ID {
		t.Fatalf("losing proposal must be recorded superseded, got %+v", res.Superseded)
	}
	if res.Superseded[0].Status != domain.ProposalStatusSuperseded {
		t.Fatalf("superseded status not set: %s", res.Superseded[0].Status)
	}
}

func TestResolve_NonConflictingMergeOrderedByConfidence(t *testing.T) {
	rightsize := proposal("llm-pool-1", domain.ActionRightSize, domain.DomainResource, 0.6)
	reconfigure := proposal("llm-pool-1", domain.ActionReconfigure, domain.DomainPerformance, 0.9)
	migrate := proposal("llm-pool-1", domain.ActionMigrate, domain.DomainCost, 0.7)

	res := Resolve([]domain.ChangeProposal{rightsize, reconfigure, migrate})

	if len(res.Plans) != 1 {
		t.Fatalf("expected 1 merged plan, got %d", len(res.Plans))
	}
	steps := res.Plans[0].Steps
	if len(steps) != 3 {
		t.Fatalf("expected all 3 disjoint proposals merged, got %d", len(steps))
	}
	if steps[0].ID != reconfigure.ID || steps[1].ID != migrate.ID || steps[2].ID != rightsize.ID {
		t.Fatalf("steps must be ordered by descending confidence, got %+v", steps)
	}
	if len(res.Superseded) != 0 {
		t.Fatalf("nothing should be superseded, got %d", len(res.Superseded))
	}
}

func TestResolve_TieBrokenByConfidenceThenID(t *testing.T) {
	a := proposal("llm-pool-1", domain.ActionScaleDown, domain.DomainCost, 0.8)
	b := proposal("llm-pool-1", domain.ActionScaleUp, domain.DomainCost, 0.6)

	res := Resolve([]domain.ChangeProposal{b, a})
	if res.Plans[0].Steps[0].ID != a.ID {
		t.Fatal("same-domain conflict must fall to higher confidence")
	}

	// Equal confidence: earliest proposal ID wins, deterministically.
	c := proposal("llm-pool-2", domain.ActionScaleDown, domain.DomainCost, 0.7)
	d := proposal("llm-pool-2", domain.ActionScaleUp, domain.DomainCost, 0.7)
	winner := c
	if d.ID.String() < c.ID.String() {
		winner = d
	}
	res = Resolve([]domain.ChangeProposal{c, d})
	if res.Plans[0].Steps[0].ID != winner.ID {
		t.Fatal("equal confidence must fall to earliest proposal ID")
	}
}

func TestResolve_Deterministic(t *testing.T) {
	proposals := []domain.ChangeProposal{
		proposal("r-1", domain.ActionTerminate, domain.DomainCost, 0.95),
		proposal("r-1", domain.ActionRightSize, domain.DomainResource, 0.7),
		proposal("r-1", domain.ActionReconfigure, domain.DomainPerformance, 0.8),
		proposal("r-2", domain.ActionKeep, domain.DomainApplication, 0.4),
		proposal("r-2", domain.ActionScaleDown, domain.DomainCost, 0.99),
	}

	baseline := Resolve(proposals)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		shuffled := make([]domain.ChangeProposal, len(proposals))
		copy(shuffled, proposals)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := Resolve(shuffled)
		if len(got.Plans) != len(baseline.Plans) {
			t.Fatalf("plan count changed with input order: %d vs %d", len(got.Plans), len(baseline.Plans))
		}
		for i, plan := range got.Plans {
			want := baseline.Plans[i]
			if plan.ResourceID != want.ResourceID || len(plan.Steps) != len(want.Steps) {
				t.Fatalf("plan %d differs under permutation", i)
			}
			for j := range plan.Steps {
				if plan.Steps[j].ID != want.Steps[j].ID {
					t.Fatalf("step order differs under permutation: plan %d step %d", i, j)
				}
			}
		}
		if len(got.Superseded) != len(baseline.Superseded) {
			t.Fatalf("superseded count changed with input order")
		}
	}
}

func TestResolve_OnePlanPerResource(t *testing.T) {
	res := Resolve([]domain.ChangeProposal{
		proposal("r-1", domain.ActionRightSize, domain.DomainResource, 0.7),
		proposal("r-2", domain.ActionReconfigure, domain.DomainPerformance, 0.8),
		proposal("r-3", domain.ActionTerminate, domain.DomainCost, 0.9),
	})
	if len(res.Plans) != 3 {
		t.Fatalf("expected one plan per resource, got %d", len(res.Plans))
	}
	seen := make(map[string]bool)
	for _, p := range res.Plans {
		if seen[p.ResourceID] {
			t.Fatalf("duplicate plan for resource %s", p.ResourceID)
		}
		seen[p.ResourceID] = true
	}
}

func TestResolve_Empty(t *testing.T) {
	res := Resolve(nil)
	if len(res.Plans) != 0 || len(res.Superseded) != 0 {
		t.Fatalf("expected empty resolution, got %+v", res)
	}
}

func TestResolve_MixedConflictAndIndependent(t *testing.T) {
	// terminate (cost) loses to keep (application); reconfigure conflicts
	// with keep too because lifecycle decisions exclude everything.
	keep := proposal("r-1", domain.ActionKeep, domain.DomainApplication, 0.5)
	terminate := proposal("r-1", domain.ActionTerminate, domain.DomainCost, 0.9)
	reconfigure := proposal("r-1", domain.ActionReconfigure, domain.DomainPerformance, 0.8)

	res := Resolve([]domain.ChangeProposal{terminate, reconfigure, keep})
	if len(res.Plans[0].Steps) != 1 || res.Plans[0].Steps[0].ID != keep.ID {
		t.Fatalf("keep must exclude all other actions, got %+v", res.Plans[0].Steps)
	}
	if len(res.Superseded) != 2 {
		t.Fatalf("expected 2 superseded proposals, got %d", len(res.Superseded))
	}
}
