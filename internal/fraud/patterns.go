package fraud

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
)

// DetectorConfig holds the pattern detection thresholds
type DetectorConfig struct {
	BurstWindow       time.Duration `mapstructure:"burst_window"`
	ProbeAmounts      []float64     `mapstructure:"probe_amounts"`
	ProbeTolerance    float64       `mapstructure:"probe_tolerance"`
	PerfectScoreCount int           `mapstructure:"perfect_score_count"`
}

// DefaultDetectorConfig returns the production detection thresholds.
// Probe amounts are the usual limit-testing constants just under round
// thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BurstWindow:       60 * time.Minute,
		ProbeAmounts:      []float64{499.99, 999.99, 4999.99, 9999.99},
		ProbeTolerance:    0.1,
		PerfectScoreCount: 5,
	}
}

// PatternDetector finds cross-transaction fraud patterns in a session's
// transaction window
type PatternDetector struct {
	cfg    DetectorConfig
	logger *zap.Logger
}

// NewPatternDetector creates a detector with the given configuration
func NewPatternDetector(cfg DetectorConfig, logger *zap.Logger) *PatternDetector {
	return &PatternDetector{cfg: cfg, logger: logger}
}

// Detect runs all pattern checks over the transaction set and returns
// every match ranked by risk impact descending. Lower-severity matches
// are never dropped.
func (d *PatternDetector) Detect(txs []TransactionContext) []entity.PatternMatch {
	var matches []entity.PatternMatch

	matches = append(matches, d.rapidIdentical(txs)...)
	matches = append(matches, d.amountLimitTesting(txs)...)
	matches = append(matches, d.perfectScoreClustering(txs)...)
	matches = append(matches, d.sameCustomerBurst(txs)...)

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].RiskLevel.Rank() != matches[j].RiskLevel.Rank() {
			return matches[i].RiskLevel.Rank() > matches[j].RiskLevel.Rank()
		}
		return matches[i].Confidence > matches[j].Confidence
	})

	if len(matches) > 0 {
		d.logger.Info("fraud patterns detected",
			zap.Int("count", len(matches)),
			zap.String("top", string(matches[0].Type)))
	}
	return matches
}

// rapidIdentical flags groups of >=3 transactions with identical
// (amount, quality score) inside the burst window
func (d *PatternDetector) rapidIdentical(txs []TransactionContext) []entity.PatternMatch {
	type key struct {
		amount  float64
		quality float64
	}
	groups := make(map[key][]TransactionContext)
	for _, tx := range txs {
		k := key{amount: tx.Amount, quality: tx.QualityScore}
		groups[k] = append(groups[k], tx)
	}

	var matches []entity.PatternMatch
	for k, group := range groups {
		if len(group) < 3 {
			continue
		}
		ids := idsWithinWindow(group, d.cfg.BurstWindow, 3)
		if ids == nil {
			continue
		}
		matches = append(matches, entity.PatternMatch{
			Type:           entity.PatternRapidIdentical,
			RiskLevel:      entity.RiskCritical,
			Confidence:     0.95,
			TransactionIDs: ids,
			Description: fmt.Sprintf("%d identical transactions (amount %.2f, quality %.0f) within %s",
				len(ids), k.amount, k.quality, d.cfg.BurstWindow),
		})
	}
	return matches
}

// amountLimitTesting flags >=2 transactions probing known threshold amounts
func (d *PatternDetector) amountLimitTesting(txs []TransactionContext) []entity.PatternMatch {
	var ids []string
	for _, tx := range txs {
		for _, probe := range d.cfg.ProbeAmounts {
			if math.Abs(tx.Amount-probe) <= d.cfg.ProbeTolerance {
				ids = append(ids, tx.TransactionID)
				break
			}
		}
	}
	if len(ids) < 2 {
		return nil
	}
	return []entity.PatternMatch{{
		Type:           entity.PatternAmountLimitProbe,
		RiskLevel:      entity.RiskHigh,
		Confidence:     0.85,
		TransactionIDs: ids,
		Description:    fmt.Sprintf("%d transactions at known limit-probing amounts", len(ids)),
	}}
}

// perfectScoreClustering flags >=5 transactions with a perfect quality score
func (d *PatternDetector) perfectScoreClustering(txs []TransactionContext) []entity.PatternMatch {
	var ids []string
	for _, tx := range txs {
		if tx.QualityScore == 100 {
			ids = append(ids, tx.TransactionID)
		}
	}
	if len(ids) < d.cfg.PerfectScoreCount {
		return nil
	}
	return []entity.PatternMatch{{
		Type:           entity.PatternPerfectScores,
		RiskLevel:      entity.RiskMedium,
		Confidence:     0.75,
		TransactionIDs: ids,
		Description:    fmt.Sprintf("%d transactions with perfect quality scores", len(ids)),
	}}
}

// sameCustomerBurst flags >=3 transactions from the same truncated
// customer identifier inside the burst window
func (d *PatternDetector) sameCustomerBurst(txs []TransactionContext) []entity.PatternMatch {
	groups := make(map[string][]TransactionContext)
	for _, tx := range txs {
		if tx.CustomerRef == "" {
			continue
		}
		groups[tx.CustomerRef] = append(groups[tx.CustomerRef], tx)
	}

	var matches []entity.PatternMatch
	for ref, group := range groups {
		if len(group) < 3 {
			continue
		}
		ids := idsWithinWindow(group, d.cfg.BurstWindow, 3)
		if ids == nil {
			continue
		}
		matches = append(matches, entity.PatternMatch{
			Type:           entity.PatternSameCustomerBurst,
			RiskLevel:      entity.RiskHigh,
			Confidence:     0.90,
			TransactionIDs: ids,
			Description: fmt.Sprintf("%d transactions from customer %s within %s",
				len(ids), ref, d.cfg.BurstWindow),
		})
	}
	return matches
}

// idsWithinWindow returns the ids of the largest run of transactions that
// fits inside the window, or nil when no run reaches min.
func idsWithinWindow(group []TransactionContext, window time.Duration, min int) []string {
	sorted := append([]TransactionContext{}, group...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var best []string
	for start := 0; start < len(sorted); start++ {
		var run []string
		for end := start; end < len(sorted); end++ {
			if sorted[end].Timestamp.Sub(sorted[start].Timestamp) > window {
				break
			}
			run = append(run, sorted[end].TransactionID)
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if len(best) < min {
		return nil
	}
	return best
}
