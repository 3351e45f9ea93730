package calibration

import (
	"math"
	"testing"
	"time"

	"github.com/litrev/litrev/internal/domain/screening"
)

func pair(id string, a, b screening.Decision) Pair {
	return Pair{ProjectWorkID: id, A: a, B: b}
}

func TestComputePerfectAgreement(t *testing.T) {
	pairs := []Pair{
		pair("s1", screening.DecisionInclude, screening.DecisionInclude),
		pair("s2", screening.DecisionExclude, screening.DecisionExclude),
		pair("s3", screening.DecisionMaybe, screening.DecisionMaybe),
	}

	rel, err := Compute(pairs)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Kappa != 1.0 {
		t.Errorf("perfect agreement must score kappa 1.0, got %v", rel.Kappa)
	}
	if rel.PercentAgreement != 100 {
		t.Errorf("expected 100%% agreement, got %v", rel.PercentAgreement)
	}
	if rel.Interpretation != "almost perfect" {
		t.Errorf("expected 'almost perfect', got %q", rel.Interpretation)
	}
	if rel.PairCount != 3 {
		t.Errorf("expected 3 pairs, got %d", rel.PairCount)
	}
}

func TestComputeChanceLevelAgreement(t *testing.T) {
	// Rater A always includes, rater B splits evenly. Observed agreement
	// equals chance agreement, so kappa lands near zero.
	pairs := []Pair{
		pair("s1", screening.DecisionInclude, screening.DecisionInclude),
		pair("s2", screening.DecisionInclude, screening.DecisionExclude),
		pair("s3", screening.DecisionInclude, screening.DecisionInclude),
		pair("s4", screening.DecisionInclude, screening.DecisionExclude),
	}

	rel, err := Compute(pairs)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rel.Kappa) > 1e-9 {
		t.Errorf("chance-level agreement must score kappa ~0, got %v", rel.Kappa)
	}
	if rel.PercentAgreement != 50 {
		t.Errorf("expected 50%% agreement, got %v", rel.PercentAgreement)
	}
}

func TestComputeNoPairs(t *testing.T) {
	_, err := Compute(nil)
	if err == nil {
		t.Fatal("expected error for empty pair set")
	}
	if !IsNoPairs(err) {
		t.Errorf("expected ErrNoPairs, got %v", err)
	}
}

func TestPairUpKeepsOnlyExactlyTwo(t *testing.T) {
	base := time.Now()
	decisions := []Decision{
		{ProjectWorkID: "s1", ReviewerID: "r1", Decision: screening.DecisionInclude, CreatedAt: base},
		{ProjectWorkID: "s1", ReviewerID: "r2", Decision: screening.DecisionExclude, CreatedAt: base.Add(time.Minute)},
		{ProjectWorkID: "s2", ReviewerID: "r1", Decision: screening.DecisionInclude, CreatedAt: base},
		{ProjectWorkID: "s3", ReviewerID: "r1", Decision: screening.DecisionInclude, CreatedAt: base},
		{ProjectWorkID: "s3", ReviewerID: "r2", Decision: screening.DecisionInclude, CreatedAt: base},
		{ProjectWorkID: "s3", ReviewerID: "r3", Decision: screening.DecisionInclude, CreatedAt: base},
	}

	pairs := PairUp(decisions)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair (s1 only), got %d", len(pairs))
	}
	if pairs[0].ProjectWorkID != "s1" {
		t.Errorf("expected pair for s1, got %s", pairs[0].ProjectWorkID)
	}
}

func TestPairUpOrdersByTimestamp(t *testing.T) {
	base := time.Now()
	decisions := []Decision{
		{ProjectWorkID: "s1", ReviewerID: "late", Decision: screening.DecisionExclude, CreatedAt: base.Add(time.Hour)},
		{ProjectWorkID: "s1", ReviewerID: "early", Decision: screening.DecisionInclude, CreatedAt: base},
	}

	pairs := PairUp(decisions)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].A != screening.DecisionInclude || pairs[0].B != screening.DecisionExclude {
		t.Errorf("pair must be ordered by timestamp: got A=%s B=%s", pairs[0].A, pairs[0].B)
	}
}

func TestInterpretBands(t *testing.T) {
	cases := []struct {
		kappa float64
		want  string
	}{
		{-0.3, "poor"},
		{0.0, "slight"},
		{0.20, "slight"},
		{0.35, "fair"},
		{0.55, "moderate"},
		{0.75, "substantial"},
		{0.95, "almost perfect"},
	}
	for _, c := range cases {
		if got := Interpret(c.kappa); got != c.want {
			t.Errorf("Interpret(%v) = %q, want %q", c.kappa, got, c.want)
		}
	}
}

func TestCreateRoundRequestValidate(t *testing.T) {
	good := CreateRoundRequest{Phase: screening.PhaseTitleAbstract, SampleSize: 20, TargetAgreement: 0.7, SampleMethod: SampleRandom}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	manual := CreateRoundRequest{Phase: screening.PhaseTitleAbstract, SampleSize: 5, TargetAgreement: 0.7, SampleMethod: SampleManual}
	if err := manual.Validate(); err == nil {
		t.Error("manual sampling without study ids accepted")
	}

	badTarget := CreateRoundRequest{Phase: screening.PhaseTitleAbstract, SampleSize: 5, TargetAgreement: 1.5, SampleMethod: SampleRandom}
	if err := badTarget.Validate(); err == nil {
		t.Error("target_agreement above 1 accepted")
	}
}
