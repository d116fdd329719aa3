package fraud

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
)

func newTestDetector(t *testing.T) *PatternDetector {
	t.Helper()
	return NewPatternDetector(DefaultDetectorConfig(), zap.NewNop())
}

func tx(id string, amount, quality float64, customerRef string, at time.Time) TransactionContext {
	return TransactionContext{
		TransactionID: id,
		Amount:        amount,
		QualityScore:  quality,
		CustomerRef:   customerRef,
		Timestamp:     at,
	}
}

func TestDetect_RapidIdenticalTransactions(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	// Three identical (amount, quality) transactions from the same phone
	// suffix within two minutes.
	txs := []TransactionContext{
		tx("tx-1", 499.99, 100, "**12", base),
		tx("tx-2", 499.99, 100, "**12", base.Add(1*time.Minute)),
		tx("tx-3", 499.99, 100, "**12", base.Add(2*time.Minute)),
	}

	matches := newTestDetector(t).Detect(txs)
	require.NotEmpty(t, matches)

	var rapid *entity.PatternMatch
	for i := range matches {
		if matches[i].Type == entity.PatternRapidIdentical {
			rapid = &matches[i]
		}
	}
	require.NotNil(t, rapid, "rapid_identical_transactions not detected")
	assert.Equal(t, entity.RiskCritical, rapid.RiskLevel)
	assert.Equal(t, 0.95, rapid.Confidence)
	assert.ElementsMatch(t, []string{"tx-1", "tx-2", "tx-3"}, rapid.TransactionIDs)

	// Ranked by risk impact descending: critical first
	assert.Equal(t, entity.PatternRapidIdentical, matches[0].Type)
}

func TestDetect_IdenticalOutsideWindowNotFlagged(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	txs := []TransactionContext{
		tx("tx-1", 250, 80, "**11", base),
		tx("tx-2", 250, 80, "**22", base.Add(2*time.Hour)),
		tx("tx-3", 250, 80, "**33", base.Add(4*time.Hour)),
	}

	for _, m := range newTestDetector(t).Detect(txs) {
		assert.NotEqual(t, entity.PatternRapidIdentical, m.Type)
	}
}

func TestDetect_AmountLimitTesting(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	txs := []TransactionContext{
		tx("tx-1", 999.95, 80, "**11", base), // within 0.1 of 999.99
		tx("tx-2", 500.05, 70, "**22", base.Add(3*time.Hour)),
		tx("tx-3", 123.45, 60, "**33", base.Add(5*time.Hour)),
	}

	matches := newTestDetector(t).Detect(txs)
	require.Len(t, matches, 1)
	assert.Equal(t, entity.PatternAmountLimitProbe, matches[0].Type)
	assert.Equal(t, entity.RiskHigh, matches[0].RiskLevel)
	assert.Equal(t, 0.85, matches[0].Confidence)
	assert.ElementsMatch(t, []string{"tx-1", "tx-2"}, matches[0].TransactionIDs)
}

func TestDetect_PerfectScoreClustering(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	var txs []TransactionContext
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("tx-%d", i),
			100+float64(i)*13, // unique amounts, avoids the identical pattern
			100,
			fmt.Sprintf("**%d", i),
			base.Add(time.Duration(i)*3*time.Hour),
		))
	}

	matches := newTestDetector(t).Detect(txs)
	require.Len(t, matches, 1)
	assert.Equal(t, entity.PatternPerfectScores, matches[0].Type)
	assert.Equal(t, entity.RiskMedium, matches[0].RiskLevel)
	assert.Equal(t, 0.75, matches[0].Confidence)
	assert.Len(t, matches[0].TransactionIDs, 5)
}

func TestDetect_SameCustomerBurst(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	txs := []TransactionContext{
		tx("tx-1", 100, 70, "**77", base),
		tx("tx-2", 215, 82, "**77", base.Add(20*time.Minute)),
		tx("tx-3", 330, 64, "**77", base.Add(45*time.Minute)),
		tx("tx-4", 120, 75, "**88", base.Add(10*time.Minute)),
	}

	matches := newTestDetector(t).Detect(txs)
	require.Len(t, matches, 1)
	assert.Equal(t, entity.PatternSameCustomerBurst, matches[0].Type)
	assert.Equal(t, entity.RiskHigh, matches[0].RiskLevel)
	assert.Equal(t, 0.90, matches[0].Confidence)
	assert.ElementsMatch(t, []string{"tx-1", "tx-2", "tx-3"}, matches[0].TransactionIDs)
}

func TestDetect_CoOccurringPatternsAllReturnedRanked(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	// Identical burst at a probe amount with perfect scores from one
	// customer: triggers rapid-identical (critical), customer burst (high),
	// limit testing (high), and with two fillers, perfect clustering (medium).
	var txs []TransactionContext
	for i := 0; i < 3; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("burst-%d", i), 499.99, 100, "**12",
			base.Add(time.Duration(i)*time.Minute),
		))
	}
	txs = append(txs,
		tx("solo-1", 777, 100, "**50", base.Add(4*time.Hour)),
		tx("solo-2", 888, 100, "**60", base.Add(8*time.Hour)),
	)

	matches := newTestDetector(t).Detect(txs)
	require.Len(t, matches, 4)

	assert.Equal(t, entity.PatternRapidIdentical, matches[0].Type)
	assert.Equal(t, entity.RiskHigh, matches[1].RiskLevel)
	assert.Equal(t, entity.RiskHigh, matches[2].RiskLevel)
	assert.Equal(t, entity.PatternPerfectScores, matches[3].Type)

	// High-severity ties break on confidence descending
	assert.GreaterOrEqual(t, matches[1].Confidence, matches[2].Confidence)
}

func TestDetect_EmptyInput(t *testing.T) {
	assert.Empty(t, newTestDetector(t).Detect(nil))
}
