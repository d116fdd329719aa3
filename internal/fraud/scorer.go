// Package fraud implements the rule-based risk scoring engine and the
// cross-transaction pattern detector. Per-transaction scores combine five
// weighted factors into a 0-100 base score; patterns are detected over a
// session's transaction window independently of individual scores.
package fraud

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
)

// TransactionContext carries everything needed to score one transaction.
// Populated by the caller; the scorer performs no lookups of its own.
type TransactionContext struct {
	TransactionID         string    `json:"transaction_id"`
	SessionID             string    `json:"session_id"`
	BusinessID            string    `json:"business_id"`
	Amount                float64   `json:"amount"`
	BusinessAverageAmount float64   `json:"business_average_amount"`
	RewardAmount          float64   `json:"reward_amount"`
	QualityScore          float64   `json:"quality_score"`
	Timestamp             time.Time `json:"timestamp"`
	CustomerRef           string    `json:"customer_ref"` // truncated identifier, e.g. phone suffix
	CustomerTxCount       int       `json:"customer_tx_count"`
	CustomerFlagged       bool      `json:"customer_flagged"`
	TypicalRewardMinPct   float64   `json:"typical_reward_min_pct"`
	TypicalRewardMaxPct   float64   `json:"typical_reward_max_pct"`
}

// RewardPercentage returns the reward as a percentage of the amount
func (c *TransactionContext) RewardPercentage() float64 {
	if c.Amount <= 0 {
		return 0
	}
	return c.RewardAmount / c.Amount * 100
}

// HourRange is a half-open [From, To) hour window within a day
type HourRange struct {
	From int `mapstructure:"from" json:"from"`
	To   int `mapstructure:"to" json:"to"`
}

// Contains reports whether the hour falls inside the window
func (r HourRange) Contains(hour int) bool {
	return hour >= r.From && hour < r.To
}

// ScorerConfig holds factor weights and business-hour windows.
// Weights sum to 1.0.
type ScorerConfig struct {
	AmountWeight  float64     `mapstructure:"amount_weight"`
	TimeWeight    float64     `mapstructure:"time_weight"`
	RewardWeight  float64     `mapstructure:"reward_weight"`
	QualityWeight float64     `mapstructure:"quality_weight"`
	HistoryWeight float64     `mapstructure:"history_weight"`
	DayStartHour  int         `mapstructure:"day_start_hour"`
	DayEndHour    int         `mapstructure:"day_end_hour"`
	PeakWindows   []HourRange `mapstructure:"peak_windows"`
}

// DefaultScorerConfig returns the production factor weights
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		AmountWeight:  0.25,
		TimeWeight:    0.15,
		RewardWeight:  0.20,
		QualityWeight: 0.20,
		HistoryWeight: 0.20,
		DayStartHour:  6,
		DayEndHour:    22,
		PeakWindows: []HourRange{
			{From: 11, To: 14},
			{From: 17, To: 21},
		},
	}
}

// Scorer computes rule-based fraud assessments
type Scorer struct {
	cfg    ScorerConfig
	logger *zap.Logger
}

// NewScorer creates a scorer with the given configuration
func NewScorer(cfg ScorerConfig, logger *zap.Logger) *Scorer {
	return &Scorer{cfg: cfg, logger: logger}
}

// Score evaluates one transaction and returns the advisory assessment.
// The final score is the rounded sum of weight-scaled factors, clamped to
// [0, 100].
func (s *Scorer) Score(tc TransactionContext) *entity.FraudAssessment {
	factors := []entity.RiskFactor{
		s.amountAnomaly(tc),
		s.timePattern(tc),
		s.rewardConsistency(tc),
		s.qualityExtremity(tc),
		s.customerHistory(tc),
	}

	var total float64
	for _, f := range factors {
		total += f.Weighted
	}
	score := math.Round(total)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := entity.RiskLevelFor(score)
	confidence := s.confidence(tc)

	assessment := &entity.FraudAssessment{
		TransactionID:  tc.TransactionID,
		SessionID:      tc.SessionID,
		RiskScore:      score,
		RiskLevel:      level,
		Confidence:     confidence,
		Recommendation: Recommend(level, confidence),
		Factors:        factors,
		AssessedAt:     time.Now(),
	}

	s.logger.Debug("transaction scored",
		zap.String("transaction_id", tc.TransactionID),
		zap.Float64("score", score),
		zap.String("level", string(level)),
		zap.Float64("confidence", confidence))

	return assessment
}

// amountAnomaly scores the ratio of amount to the business average.
// Both very large and anomalously tiny amounts raise risk.
func (s *Scorer) amountAnomaly(tc TransactionContext) entity.RiskFactor {
	f := entity.RiskFactor{Name: "amount_anomaly", Weight: s.cfg.AmountWeight}
	if tc.BusinessAverageAmount <= 0 {
		f.Detail = "no business average available"
		return finish(f)
	}

	ratio := tc.Amount / tc.BusinessAverageAmount
	switch {
	case ratio >= 5:
		f.Raw = 40
		f.Detail = "amount at least 5x business average"
	case ratio > 3:
		f.Raw = 25
		f.Detail = "amount more than 3x business average"
	case ratio > 2:
		f.Raw = 15
		f.Detail = "amount more than 2x business average"
	case ratio < 0.1:
		f.Raw = 20
		f.Detail = "amount anomalously small"
	}
	return finish(f)
}

// timePattern scores the transaction hour against business hours and peak windows
func (s *Scorer) timePattern(tc TransactionContext) entity.RiskFactor {
	f := entity.RiskFactor{Name: "time_pattern", Weight: s.cfg.TimeWeight}
	hour := tc.Timestamp.Hour()

	for _, w := range s.cfg.PeakWindows {
		if w.Contains(hour) {
			return finish(f)
		}
	}

	if hour < s.cfg.DayStartHour || hour >= s.cfg.DayEndHour {
		f.Raw = 25
		f.Detail = "outside normal business hours"
	} else {
		f.Raw = 10
		f.Detail = "off-peak"
	}
	return finish(f)
}

// rewardConsistency scores the reward percentage against the ceiling and
// the business's typical range
func (s *Scorer) rewardConsistency(tc TransactionContext) entity.RiskFactor {
	f := entity.RiskFactor{Name: "reward_consistency", Weight: s.cfg.RewardWeight}
	pct := tc.RewardPercentage()

	if pct >= 10 {
		f.Raw = 30
		f.Detail = "reward at or above 10% ceiling"
		return finish(f)
	}
	if tc.TypicalRewardMaxPct > 0 && (pct < tc.TypicalRewardMinPct || pct > tc.TypicalRewardMaxPct) {
		f.Raw = 15
		f.Detail = "reward outside typical business range"
	}
	return finish(f)
}

// qualityExtremity scores suspiciously perfect and suspiciously poor
// quality scores; both ends raise risk
func (s *Scorer) qualityExtremity(tc TransactionContext) entity.RiskFactor {
	f := entity.RiskFactor{Name: "customer_behavior", Weight: s.cfg.QualityWeight}
	switch {
	case tc.QualityScore == 100:
		f.Raw = 25
		f.Detail = "perfect quality score"
	case tc.QualityScore > 95:
		f.Raw = 15
		f.Detail = "near-perfect quality score"
	case tc.QualityScore < 30:
		f.Raw = 20
		f.Detail = "very poor quality score"
	}
	return finish(f)
}

// customerHistory scores prior behavior of the customer
func (s *Scorer) customerHistory(tc TransactionContext) entity.RiskFactor {
	f := entity.RiskFactor{Name: "customer_history", Weight: s.cfg.HistoryWeight}
	switch {
	case tc.CustomerFlagged:
		f.Raw = 40
		f.Detail = "customer has flagged fraud history"
	case tc.CustomerTxCount == 0:
		f.Raw = 20
		f.Detail = "first transaction from customer"
	case tc.CustomerTxCount == 1:
		f.Raw = 10
		f.Detail = "only one prior transaction"
	}
	return finish(f)
}

// confidence reflects how complete the scoring inputs were
func (s *Scorer) confidence(tc TransactionContext) float64 {
	confidence := 0.9
	if tc.BusinessAverageAmount <= 0 {
		confidence -= 0.15
	}
	if tc.CustomerRef == "" {
		confidence -= 0.05
	}
	if tc.TypicalRewardMaxPct <= 0 {
		confidence -= 0.05
	}
	return confidence
}

func finish(f entity.RiskFactor) entity.RiskFactor {
	f.Weighted = f.Raw * f.Weight
	return f
}

// Recommend derives the advisory verdict from risk level and confidence.
// Low confidence always routes to manual review.
func Recommend(level entity.RiskLevel, confidence float64) entity.Recommendation {
	if confidence < 0.7 {
		return entity.RecommendReview
	}
	switch level {
	case entity.RiskCritical:
		if confidence > 0.9 {
			return entity.RecommendReject
		}
		return entity.RecommendInvestigate
	case entity.RiskHigh:
		if confidence > 0.8 {
			return entity.RecommendInvestigate
		}
		return entity.RecommendReview
	case entity.RiskMedium:
		return entity.RecommendReview
	default:
		if confidence > 0.8 {
			return entity.RecommendApprove
		}
		return entity.RecommendReview
	}
}
