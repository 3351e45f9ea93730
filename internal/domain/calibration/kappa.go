package calibration

import (
	"errors"
	"fmt"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/screening"
)

// Pair holds the two decisions recorded on one study. Rater order matters for
// the marginal distributions: A is the first decision by timestamp, B the
// second.
type Pair struct {
	ProjectWorkID string
	A, B          screening.Decision
}

// Reliability is the computed agreement statistic for a round.
type Reliability struct {
	PairCount        int     `json:"pair_count"`
	PercentAgreement float64 `json:"percent_agreement"`
	Kappa            float64 `json:"kappa"`
	Interpretation   string  `json:"interpretation"`
}

// ErrNoPairs is returned when a round has no study with exactly two
// decisions, making the pairwise statistic undefined.
var ErrNoPairs = fmt.Errorf("%w: no studies with exactly two calibration decisions", domain.ErrDomain)

// PairUp groups calibration decisions by study and keeps only studies with
// exactly two decisions. Studies with 0, 1 or >2 decisions are excluded from
// the pairwise statistic.
func PairUp(decisions []Decision) []Pair {
	byStudy := make(map[string][]Decision)
	order := make([]string, 0)
	for _, d := range decisions {
		if _, seen := byStudy[d.ProjectWorkID]; !seen {
			order = append(order, d.ProjectWorkID)
		}
		byStudy[d.ProjectWorkID] = append(byStudy[d.ProjectWorkID], d)
	}

	var pairs []Pair
	for _, id := range order {
		ds := byStudy[id]
		if len(ds) != 2 {
			continue
		}
		a, b := ds[0], ds[1]
		if b.CreatedAt.Before(a.CreatedAt) {
			a, b = b, a
		}
		pairs = append(pairs, Pair{ProjectWorkID: id, A: a.Decision, B: b.Decision})
	}
	return pairs
}

// Compute calculates percent agreement and unweighted multi-category Cohen's
// Kappa over the retained pairs.
//
//	kappa = (Po - Pe) / (1 - Po)
//
// where Po is the observed agreement proportion and Pe the chance-agreement
// probability from each rater's marginal frequencies over the decision
// categories. Perfect observed agreement short-circuits to kappa = 1.
func Compute(pairs []Pair) (*Reliability, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}

	n := float64(len(pairs))
	agree := 0
	marginalA := make(map[screening.Decision]int)
	marginalB := make(map[screening.Decision]int)
	for _, p := range pairs {
		if p.A == p.B {
			agree++
		}
		marginalA[p.A]++
		marginalB[p.B]++
	}

	po := float64(agree) / n

	pe := 0.0
	for _, cat := range screening.Decisions {
		pe += (float64(marginalA[cat]) / n) * (float64(marginalB[cat]) / n)
	}

	kappa := 1.0
	if po < 1 {
		kappa = (po - pe) / (1 - po)
	}

	return &Reliability{
		PairCount:        len(pairs),
		PercentAgreement: po * 100,
		Kappa:            kappa,
		Interpretation:   Interpret(kappa),
	}, nil
}

// Interpret classifies a kappa score into the Landis-Koch agreement bands.
func Interpret(kappa float64) string {
	switch {
	case kappa < 0:
		return "poor"
	case kappa <= 0.20:
		return "slight"
	case kappa <= 0.40:
		return "fair"
	case kappa <= 0.60:
		return "moderate"
	case kappa <= 0.80:
		return "substantial"
	default:
		return "almost perfect"
	}
}

// IsNoPairs reports whether err is the no-pairable-studies domain error.
func IsNoPairs(err error) bool {
	return errors.Is(err, ErrNoPairs)
}
