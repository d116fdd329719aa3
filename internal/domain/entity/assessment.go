package entity

import "time"

// RiskLevel is the categorical bucket derived from the numeric risk score
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// severityRank orders risk levels for pattern ranking
var severityRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns a sortable severity ordinal, higher is more severe
func (l RiskLevel) Rank() int {
	return severityRank[l]
}

// RiskLevelFor buckets a 0-100 score into a risk level
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Recommendation is the advisory verdict attached to an assessment
type Recommendation string

const (
	RecommendApprove     Recommendation = "approve"
	RecommendReview      Recommendation = "review"
	RecommendReject      Recommendation = "reject"
	RecommendInvestigate Recommendation = "investigate"
)

// RiskFactor is one weighted contribution to the base score
type RiskFactor struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Detail   string  `json:"detail,omitempty"`
}

// PatternType identifies a cross-transaction fraud pattern
type PatternType string

const (
	PatternRapidIdentical    PatternType = "rapid_identical_transactions"
	PatternAmountLimitProbe  PatternType = "amount_limit_testing"
	PatternPerfectScores     PatternType = "perfect_score_clustering"
	PatternSameCustomerBurst PatternType = "same_customer_burst"
)

// PatternMatch is one detected cross-transaction signal
type PatternMatch struct {
	Type           PatternType `json:"type"`
	RiskLevel      RiskLevel   `json:"risk_level"`
	Confidence     float64     `json:"confidence"`
	TransactionIDs []string    `json:"transaction_ids"`
	Description    string      `json:"description"`
}

// FraudAssessment is the advisory snapshot computed for one transaction
// within one session. It may be persisted for audit but is never
// authoritative over the recorded Result.
type FraudAssessment struct {
	TransactionID  string         `json:"transaction_id"`
	SessionID      string         `json:"session_id"`
	RiskScore      float64        `json:"risk_score"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Confidence     float64        `json:"confidence"`
	Recommendation Recommendation `json:"recommendation"`
	Factors        []RiskFactor   `json:"factors"`
	Patterns       []PatternMatch `json:"patterns,omitempty"`
	Fallback       bool           `json:"fallback,omitempty"`
	AssessedAt     time.Time      `json:"assessed_at"`
}

// FallbackAssessment is the rule-based default used when the advisory
// provider is unavailable: medium risk, review recommendation.
func FallbackAssessment(sessionID, transactionID string, now time.Time) *FraudAssessment {
	return &FraudAssessment{
		TransactionID:  transactionID,
		SessionID:      sessionID,
		RiskScore:      50,
		RiskLevel:      RiskMedium,
		Confidence:     0.5,
		Recommendation: RecommendReview,
		Fallback:       true,
		AssessedAt:     now,
	}
}
