// Package openai implements the advisory risk assessor port on the
// OpenAI chat completion API. The assessment is advisory only; callers
// fall back to rule-based scoring when the provider fails.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/fraud"
)

const systemPrompt = "You are a payment fraud analyst for a weekly merchant payment platform. " +
	"Assess the fraud risk of individual transactions from the structured facts provided. " +
	"Always respond with valid JSON."

// Assessor implements the risk assessor port using OpenAI
type Assessor struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewAssessor creates a new OpenAI risk assessor
func NewAssessor(apiKey, model string, temperature float32, maxTokens int, logger *zap.Logger) *Assessor {
	return &Assessor{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// assessmentResponse is the JSON shape the model is asked to produce
type assessmentResponse struct {
	RiskScore      float64 `json:"risk_score"`
	RiskLevel      string  `json:"risk_level"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	Factors        []struct {
		Name   string  `json:"name"`
		Score  float64 `json:"score"`
		Detail string  `json:"detail"`
	} `json:"factors"`
}

// Assess requests a fraud assessment for one transaction. Provider and
// parse failures wrap entity.ErrAssessmentUnavailable so callers can
// switch to the rule-based fallback.
func (a *Assessor) Assess(ctx context.Context, tc fraud.TransactionContext) (*entity.FraudAssessment, error) {
	a.logger.Debug("Requesting advisory assessment",
		zap.String("transaction_id", tc.TransactionID),
		zap.Float64("amount", tc.Amount))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildAssessmentPrompt(tc),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Warn("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", entity.ErrAssessmentUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", entity.ErrAssessmentUnavailable)
	}

	content := resp.Choices[0].Message.Content
	var parsed assessmentResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		a.logger.Warn("Failed to parse assessment response",
			zap.Error(err), zap.String("content", content))
		return nil, fmt.Errorf("%w: malformed response", entity.ErrAssessmentUnavailable)
	}

	assessment := a.toAssessment(tc, &parsed)

	a.logger.Info("Advisory assessment completed",
		zap.String("transaction_id", tc.TransactionID),
		zap.Float64("risk_score", assessment.RiskScore),
		zap.String("risk_level", string(assessment.RiskLevel)),
		zap.Float64("confidence", assessment.Confidence))

	return assessment, nil
}

// toAssessment clamps and normalizes the model output into the domain
// shape. The level is recomputed from the score when the model's label
// disagrees with its own number.
func (a *Assessor) toAssessment(tc fraud.TransactionContext, parsed *assessmentResponse) *entity.FraudAssessment {
	score := clamp(parsed.RiskScore, 0, 100)
	confidence := clamp(parsed.Confidence, 0, 1)

	level := entity.RiskLevelFor(score)
	recommendation := normalizeRecommendation(parsed.Recommendation)
	if recommendation == "" {
		recommendation = entity.RecommendReview
	}

	factors := make([]entity.RiskFactor, 0, len(parsed.Factors))
	for _, f := range parsed.Factors {
		factors = append(factors, entity.RiskFactor{
			Name:     f.Name,
			Raw:      clamp(f.Score, 0, 100),
			Weighted: clamp(f.Score, 0, 100),
			Detail:   f.Detail,
		})
	}

	return &entity.FraudAssessment{
		SessionID:      tc.SessionID,
		TransactionID:  tc.TransactionID,
		RiskScore:      score,
		RiskLevel:      level,
		Confidence:     confidence,
		Recommendation: recommendation,
		Factors:        factors,
		AssessedAt:     time.Now(),
	}
}

func buildAssessmentPrompt(tc fraud.TransactionContext) string {
	facts, _ := json.MarshalIndent(map[string]interface{}{
		"transaction_id":           tc.TransactionID,
		"amount":                   tc.Amount,
		"business_average_amount":  tc.BusinessAverageAmount,
		"reward_amount":            tc.RewardAmount,
		"quality_score":            tc.QualityScore,
		"timestamp":                tc.Timestamp.Format(time.RFC3339),
		"customer_ref":             tc.CustomerRef,
		"customer_prior_tx_count":  tc.CustomerTxCount,
		"customer_flagged":         tc.CustomerFlagged,
		"typical_reward_range_pct": []float64{tc.TypicalRewardMinPct, tc.TypicalRewardMaxPct},
	}, "", "  ")

	return fmt.Sprintf(`Assess the fraud risk of this payment transaction:

**Transaction Facts:**
%s

Consider amount deviation from the business average, timing, reward
consistency, quality score extremity, and customer history.

Respond with ONLY a valid JSON object with this exact structure:
{
  "risk_score": number between 0 and 100,
  "risk_level": "low" | "medium" | "high" | "critical",
  "confidence": number between 0.0 and 1.0,
  "recommendation": "approve" | "review" | "investigate" | "reject",
  "factors": [{"name": string, "score": number, "detail": string}]
}`, string(facts))
}

func normalizeRecommendation(s string) entity.Recommendation {
	switch entity.Recommendation(s) {
	case entity.RecommendApprove, entity.RecommendReview, entity.RecommendInvestigate, entity.RecommendReject:
		return entity.Recommendation(s)
	default:
		return ""
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
