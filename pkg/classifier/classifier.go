package classifier

import (
	"context"
	"fmt"
	"math"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
)

const (
	// KeywordScore is reported when a product keyword alone decides the intent.
	KeywordScore = 0.75
	// FallbackScore is reported when the model step is unavailable.
	FallbackScore = 0.5
	// DefaultThreshold gates the product pass and the specific-interest claim.
	DefaultThreshold = 0.7

	module = "CLASSIFIER"
)

// Classifier runs the rule, keyword, model cascade. It never fails: when the
// model is missing or errors, a general-interest result is returned.
type Classifier struct {
	rules     []Rule
	model     ZeroShotModel
	threshold float64
	timeout   time.Duration
	logger    logger.ILogger

	intentByPhrase  map[string]Intent
	productByPhrase map[string]Product
}

type Option func(*Classifier)

func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Classifier) {
		c.timeout = timeout
	}
}

// New builds a classifier. model may be nil, in which case every message that
// escapes the rules and keywords gets the fallback result.
func New(model ZeroShotModel, threshold float64, log logger.ILogger, opts ...Option) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	c := &Classifier{
		rules:           DefaultRules(),
		model:           model,
		threshold:       threshold,
		timeout:         15 * time.Second,
		logger:          log,
		intentByPhrase:  make(map[string]Intent, len(intentHypotheses)),
		productByPhrase: make(map[string]Product, len(productHypotheses)),
	}
	for _, h := range intentHypotheses {
		c.intentByPhrase[h.phrase] = h.intent
	}
	for _, h := range productHypotheses {
		c.productByPhrase[h.phrase] = h.product
	}
	for _, opt := range opts {
		opt(c)
	}

	if model == nil {
		log.Warn(module, "Zero-shot model unavailable, model step will use the fallback result", nil)
	}
	return c
}

// Vocabulary lists every intent label Classify can return.
func (c *Classifier) Vocabulary() []Intent {
	seen := make(map[Intent]bool)
	var labels []Intent
	add := func(i Intent) {
		if !seen[i] {
			seen[i] = true
			labels = append(labels, i)
		}
	}
	for _, r := range c.rules {
		add(r.Intent)
	}
	add(IntentSpecificInterest)
	for _, h := range intentHypotheses {
		add(h.intent)
	}
	add(IntentGeneralInterest)
	return labels
}

// Classify resolves the intent and products of a raw customer message.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	normalized := Normalize(text)

	if rule, ok := matchRule(c.rules, normalized); ok {
		result := Result{Intent: rule.Intent, IntentScore: rule.Score}
		if rule.DetectProducts {
			if products := DetectProducts(normalized); len(products) > 0 {
				result.Products = products
				result.ProductScore = rule.Score
			}
		}
		c.logger.Debug(module, "Rule matched", map[string]interface{}{"intent": rule.Intent})
		return rounded(result)
	}

	if products := DetectProducts(normalized); len(products) > 0 {
		return rounded(Result{
			Intent:       IntentSpecificInterest,
			IntentScore:  KeywordScore,
			Products:     products,
			ProductScore: KeywordScore,
		})
	}

	result, err := c.classifyWithModel(ctx, text)
	if err != nil {
		c.logger.Warn(module, "Zero-shot classification failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return Fallback()
	}
	return rounded(result)
}

// Fallback is the result used when the model step cannot run.
func Fallback() Result {
	return Result{Intent: IntentGeneralInterest, IntentScore: FallbackScore}
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) (Result, error) {
	if c.model == nil {
		return Result{}, fmt.Errorf("zero-shot model not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	phrases := make([]string, len(intentHypotheses))
	for i, h := range intentHypotheses {
		phrases[i] = h.phrase
	}

	scores, err := c.model.Classify(ctx, text, phrases, intentHypothesisTemplate)
	if err != nil {
		return Result{}, fmt.Errorf("intent pass: %w", err)
	}
	if len(scores) == 0 {
		return Result{}, fmt.Errorf("intent pass returned no labels")
	}

	intent, ok := c.intentByPhrase[scores[0].Label]
	if !ok {
		return Result{}, fmt.Errorf("intent pass returned unknown label %q", scores[0].Label)
	}
	result := Result{Intent: intent, IntentScore: scores[0].Score}

	if intent != IntentSpecificInterest || result.IntentScore < c.threshold {
		return result, nil
	}

	productPhrases := make([]string, len(productHypotheses))
	for i, h := range productHypotheses {
		productPhrases[i] = h.phrase
	}

	productScores, err := c.model.Classify(ctx, text, productPhrases, productHypothesisTemplate)
	if err != nil {
		return Result{}, fmt.Errorf("product pass: %w", err)
	}

	if len(productScores) == 0 || productScores[0].Score < c.threshold {
		// Not confident enough to name a product.
		result.Intent = IntentGeneralInterest
		return result, nil
	}

	product, ok := c.productByPhrase[productScores[0].Label]
	if !ok {
		return Result{}, fmt.Errorf("product pass returned unknown label %q", productScores[0].Label)
	}
	result.Products = []Product{product}
	result.ProductScore = productScores[0].Score
	return result, nil
}

func rounded(r Result) Result {
	r.IntentScore = round3(r.IntentScore)
	r.ProductScore = round3(r.ProductScore)
	return r
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
