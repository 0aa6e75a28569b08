package market

const (
	DefaultMarginPct      = 20
	DefaultProbabilityPct = 50
)

// Evaluator decides whether a counterparty accepts a proposed swap.
type Evaluator struct {
	// MarginPct is the largest relative cost difference, as a percentage of
	// the counterparty's cost, still considered "about equal".
	MarginPct float64
	// ProbabilityPct is the chance an about-equal offer is accepted.
	ProbabilityPct int
}

func DefaultEvaluator() Evaluator {
	return Evaluator{MarginPct: DefaultMarginPct, ProbabilityPct: DefaultProbabilityPct}
}

// AboutEqual compares costs relative to the counterparty's cost.
// A zero counterparty cost is only matched by a zero initiator cost.
func (e Evaluator) AboutEqual(initiatorCost, counterpartyCost int) bool {
	delta := initiatorCost - counterpartyCost
	if delta < 0 {
		delta = -delta
	}
	if counterpartyCost == 0 {
		return initiatorCost == 0
	}
	rel := float64(delta) / float64(counterpartyCost) * 100
	return rel < e.MarginPct
}

// IsAcceptable requires about-equal costs and a passing draw. The draw is
// only consulted when the costs match.
func (e Evaluator) IsAcceptable(initiatorItem, counterpartyItem MarketItem, draw Draw) bool {
	if !e.AboutEqual(initiatorItem.Cost, counterpartyItem.Cost) {
		return false
	}
	if draw == nil {
		return false
	}
	return draw.Intn(100) < e.ProbabilityPct
}
