package service

import (
	"math"

	"github.com/veckopay/verification/internal/domain/entity"
)

// DecisionPolicy holds the automatic decision thresholds used by both
// real-time verification and batch catch-up.
type DecisionPolicy struct {
	RejectRiskThreshold   float64 // fraud score above this rejects
	AutoApproveMinQuality float64 // quality at or above this auto-approves
	AutoRejectMaxQuality  float64 // quality at or below this auto-rejects
	CommissionRate        float64
}

// DefaultDecisionPolicy returns the production thresholds
func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		RejectRiskThreshold:   70,
		AutoApproveMinQuality: 90,
		AutoRejectMaxQuality:  30,
		CommissionRate:        0.03,
	}
}

// AutoDecide applies the automatic decision rules. It returns the
// decision and whether it is final; a false second return means the
// transaction requires manual review.
func (p DecisionPolicy) AutoDecide(qualityScore float64, fraudRiskScore *float64) (entity.Decision, bool) {
	risk := 0.0
	if fraudRiskScore != nil {
		risk = *fraudRiskScore
	}

	if risk > p.RejectRiskThreshold || qualityScore <= p.AutoRejectMaxQuality {
		return entity.DecisionRejected, true
	}
	if risk <= p.RejectRiskThreshold && qualityScore >= p.AutoApproveMinQuality {
		return entity.DecisionApproved, true
	}
	return entity.DecisionPending, false
}

// PaymentImpact derives the payable amounts from a decision. Rejected and
// pending transactions pay nothing. Amounts round to 2 decimals.
func (p DecisionPolicy) PaymentImpact(decision entity.Decision, amount, rewardAmount float64) entity.PaymentImpact {
	if decision != entity.DecisionApproved {
		return entity.PaymentImpact{}
	}
	return entity.PaymentImpact{
		RewardPayable:     round2(rewardAmount),
		CommissionPayable: round2(amount * p.CommissionRate),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
