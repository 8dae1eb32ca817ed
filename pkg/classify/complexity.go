// Package classify decides how a request should be served: whether it
// needs a tool-using agent at all, and if not, which model category
// fits it best. The two axes are deliberately independent; their
// keyword lists overlap but do not coincide.
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/zen-systems/agentgate/pkg/schema"
)

// Reason taxonomy for complexity decisions.
const (
	ReasonKeywordMatch   = "keyword_match"
	ReasonTrivial        = "trivial"
	ReasonURLInteraction = "url_interaction"
	reasonConservative   = "conservative_default: "
	ReasonLLMVerdict     = "llm_verdict"
)

// DefaultVerifyTimeout bounds the verification call.
const DefaultVerifyTimeout = 3 * time.Second

const (
	previewLen      = 120
	verdictCacheCap = 1024
)

// Analysis is the outcome of one complexity classification. Immutable
// after creation.
type Analysis struct {
	NeedsAgent      bool
	Reason          string
	MatchedKeywords []string
	HasImages       bool
	ImageCount      int
	// TextPreview is for logging only; routing must never read it.
	TextPreview string
}

// Complexity decides whether a request requires agent execution.
// Verification is mandatory whenever the heuristics are inconclusive;
// any verification failure resolves conservatively toward the agent
// path, never the cheaper one.
type Complexity struct {
	verifier Verifier
	timeout  time.Duration
	log      zerolog.Logger
	cache    *lru.Cache[string, Verdict]
}

// ComplexityOption configures a Complexity classifier.
type ComplexityOption func(*Complexity)

// WithVerifyTimeout overrides the verification call bound.
func WithVerifyTimeout(d time.Duration) ComplexityOption {
	return func(c *Complexity) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithComplexityLogger sets the logger.
func WithComplexityLogger(log zerolog.Logger) ComplexityOption {
	return func(c *Complexity) { c.log = log }
}

// NewComplexity creates a complexity classifier. A nil verifier is
// legal and behaves like permanently missing credentials.
func NewComplexity(verifier Verifier, opts ...ComplexityOption) *Complexity {
	cache, _ := lru.New[string, Verdict](verdictCacheCap)
	c := &Complexity{
		verifier: verifier,
		timeout:  DefaultVerifyTimeout,
		log:      zerolog.Nop(),
		cache:    cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the decision pipeline: keyword pass, URL heuristic,
// trivial short-circuit, then mandatory verification. It never blocks
// past the verification timeout and never returns an error.
func (c *Complexity) Classify(ctx context.Context, req *schema.Request) Analysis {
	text := req.Text()
	analysis := Analysis{
		HasImages:   req.HasImages(),
		ImageCount:  req.ImageCount(),
		TextPreview: preview(text),
	}

	// A keyword match is authoritative: deterministic, no outbound call.
	if matched := matchKeywords(text); len(matched) > 0 {
		analysis.NeedsAgent = true
		analysis.Reason = ReasonKeywordMatch
		analysis.MatchedKeywords = matched
		return analysis
	}

	// URL interaction tasks need tool access even when they read as
	// conversational; this overrides whatever the verifier would say.
	if hasURLInteraction(text) {
		analysis.NeedsAgent = true
		analysis.Reason = ReasonURLInteraction
		return analysis
	}

	if isTrivial(text) {
		analysis.NeedsAgent = false
		analysis.Reason = ReasonTrivial
		return analysis
	}

	verdict, cause := c.verify(ctx, text)
	if cause != "" {
		c.log.Warn().Str("cause", cause).Msg("complexity verification failed; defaulting to agent path")
		analysis.NeedsAgent = true
		analysis.Reason = reasonConservative + cause
		return analysis
	}

	analysis.NeedsAgent = verdict.NeedsAgent
	analysis.Reason = verdict.Reason
	if analysis.Reason == "" {
		analysis.Reason = ReasonLLMVerdict
	}
	return analysis
}

// verify issues the bounded verification call, consulting the verdict
// cache first. The returned cause is empty on success.
func (c *Complexity) verify(ctx context.Context, text string) (Verdict, string) {
	if c.verifier == nil {
		return Verdict{}, "no_credentials"
	}

	key := cacheKey(text)
	if cached, ok := c.cache.Get(key); ok {
		return cached, ""
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	verdict, err := c.verifier.VerifyComplexity(callCtx, text)
	switch {
	case errors.Is(err, ErrNoCredentials):
		return Verdict{}, "no_credentials"
	case errors.Is(err, context.DeadlineExceeded):
		return Verdict{}, "timeout"
	case err != nil:
		return Verdict{}, "verification_error"
	case verdict == nil:
		return Verdict{}, "malformed_verdict"
	}

	c.cache.Add(key, *verdict)
	return *verdict, ""
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen]
}
