// Package moderation implements the admission gate that screens user text through an
// external classifier before a write commits. The gate fails open: when the classifier
// cannot give a usable answer the write proceeds.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Instruction is sent with every classification request.
const Instruction = `Analyze this text for: Hate Speech, Harassment, Gibberish/Spam, or Spoilers.
Respond ONLY with this JSON:
{ "isSafe": boolean, "reason": "Short explanation" }`

// DefaultBlockReason is used when the classifier flags text without explaining why.
const DefaultBlockReason = "content flagged by moderation"

// Kind classifies a verdict.
type Kind int

const (
	// Allow means the text may be written.
	Allow Kind = iota
	// Block means the classifier flagged the text.
	Block
	// Indeterminate means no usable answer was obtained; treated as Allow.
	Indeterminate
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Block:
		return "block"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Verdict is the transient outcome of one admission check.
type Verdict struct {
	Kind   Kind
	Reason string
}

// Allowed reports whether the write may proceed.
func (v Verdict) Allowed() bool {
	return v.Kind != Block
}

// ErrUnavailable wraps every way a classification attempt can fail.
var ErrUnavailable = errors.New("classifier unavailable")

var verdictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "forum_admission_verdicts_total",
		Help: "Admission gate verdicts by outcome",
	},
	[]string{"verdict"},
)

// Gate decides whether submitted text may be persisted.
type Gate struct {
	classifier Classifier
	timeout    time.Duration
	log        *zap.Logger
}

// NewGate builds a gate. A nil classifier disables moderation: every text is allowed.
func NewGate(classifier Classifier, timeout time.Duration, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Gate{classifier: classifier, timeout: timeout, log: log}
}

// Enabled reports whether a classifier is configured.
func (g *Gate) Enabled() bool {
	return g != nil && g.classifier != nil
}

// Evaluate screens title and body. It never returns an error; failures collapse into allow.
func (g *Gate) Evaluate(ctx context.Context, title, body string) Verdict {
	v := g.evaluate(ctx, title, body)
	verdictsTotal.WithLabelValues(v.Kind.String()).Inc()
	return v
}

func (g *Gate) evaluate(ctx context.Context, title, body string) Verdict {
	if !g.Enabled() {
		return Verdict{Kind: Allow}
	}
	if strings.TrimSpace(title+body) == "" {
		// required-field validation happens before the gate
		return Verdict{Kind: Allow}
	}

	text := fmt.Sprintf("Title: %s. Content: %s", title, body)
	res, err := g.classify(ctx, text)
	if err != nil {
		// the single fail-open point
		g.log.Warn("admission check unavailable, allowing write", zap.Error(err))
		return Verdict{Kind: Indeterminate}
	}
	if res.flagged {
		g.log.Info("admission blocked write", zap.String("reason", res.reason))
		return Verdict{Kind: Block, Reason: res.reason}
	}
	return Verdict{Kind: Allow}
}

type analysis struct {
	flagged bool
	reason  string
}

// classify performs exactly one bounded classifier call.
func (g *Gate) classify(ctx context.Context, text string) (analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.classifier.Generate(ctx, Instruction, text)
	if err != nil {
		return analysis{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parseAnalysis(raw)
}

// parseAnalysis reads {"isSafe": bool, "reason": string} out of model output.
// Only a JSON boolean false flags the text.
func parseAnalysis(raw string) (analysis, error) {
	text := strings.NewReplacer("```json", "", "```JSON", "", "```", "").Replace(raw)
	text = strings.TrimSpace(text)

	// The whole reply must be one JSON object; anything else is unusable.
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return analysis{}, fmt.Errorf("%w: malformed verdict %q: %v", ErrUnavailable, truncate(raw, 200), err)
	}
	if fields == nil {
		return analysis{}, fmt.Errorf("%w: verdict is not an object", ErrUnavailable)
	}

	safe, isBool := fields["isSafe"].(bool)
	if !isBool || safe {
		return analysis{}, nil
	}

	reason, _ := fields["reason"].(string)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBlockReason
	}
	return analysis{flagged: true, reason: reason}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
