// Package adjudicate asks a language model to review uncertain or
// low-confidence labels and turns its answer into a labeling.Verdict.
package adjudicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"framelabel/internal/labeling"
	"framelabel/internal/llm"
	"framelabel/internal/scoring"
	"framelabel/internal/types"
	"framelabel/internal/util/jsonutil"
)

var (
	ErrNoVerdict     = errors.New("adjudicate: no usable verdict")
	ErrNotConfigured = errors.New("adjudicate: no model configured")
)

// FallbackRationale marks verdicts produced without a model.
const FallbackRationale = "LLM validation not available - using automatic classification"

// Prompt carries the instructions; the evidence travels as the JSON input.
const Prompt = `You are a senior software engineer analyzing a GitHub repository to identify its primary framework.

The input below holds the repository information, a sample of its file structure
("type: path"), declared dependencies per manifest ("name: version"), the framework
signals detected so far ("TYPE Pn: evidence"), the framework scores and the current
automatic classification. Stored repositories may come without files or signals.

Questions:
1. What is the PRIMARY framework used in this repository?
2. What is your confidence level? (high/medium/low)
3. Are other frameworks mixed in? If yes, list them.
4. What is your rationale for this classification?

Use the framework identifiers from the signals when one fits.
Respond in JSON format:
{
    "primary_framework": "framework-name or null",
    "confidence": "high|medium|low",
    "competing_frameworks": ["framework1", "framework2"],
    "rationale": "explanation of your classification"
}`

// Adjudicator reviews labels with an llm.Client. A nil client is allowed;
// Adjudicate then fails with ErrNotConfigured.
type Adjudicator struct {
	client llm.Client
}

func New(client llm.Client) *Adjudicator {
	return &Adjudicator{client: client}
}

// Enabled reports whether a model is configured.
func (a *Adjudicator) Enabled() bool { return a != nil && a.client != nil }

// Adjudicate sends the evidence for l to the model and parses its verdict.
func (a *Adjudicator) Adjudicate(ctx context.Context, l labeling.Labeled, snap *types.Snapshot) (labeling.Verdict, error) {
	return a.AdjudicateRequest(ctx, BuildRequest(l, snap))
}

// AdjudicateRequest is Adjudicate for evidence that was assembled elsewhere,
// such as a stored record.
func (a *Adjudicator) AdjudicateRequest(ctx context.Context, req Request) (labeling.Verdict, error) {
	if !a.Enabled() {
		return labeling.Verdict{}, ErrNotConfigured
	}
	raw, err := a.client.GenerateJSON(llm.WithPhase(ctx, "adjudicate"), Prompt, req)
	if err != nil {
		return labeling.Verdict{}, fmt.Errorf("adjudicate %s: %w", req.Repository.URL, err)
	}
	v, err := ParseVerdict(raw)
	if err != nil {
		return labeling.Verdict{}, fmt.Errorf("adjudicate %s: %w", req.Repository.URL, err)
	}
	return v, nil
}

// ParseVerdict decodes a model answer. Fenced or prose-wrapped JSON and
// escaped unicode are accepted; a missing confidence counts as low.
func ParseVerdict(raw []byte) (labeling.Verdict, error) {
	var v labeling.Verdict
	if err := jsonutil.UnmarshalFlex(raw, &v); err != nil {
		return labeling.Verdict{}, fmt.Errorf("%w: %v", ErrNoVerdict, err)
	}
	v = v.Normalize()
	if v.Confidence == "" {
		v.Confidence = labeling.ConfidenceLow
	}
	if err := v.Validate(); err != nil {
		return labeling.Verdict{}, fmt.Errorf("%w: %v", ErrNoVerdict, err)
	}
	return v, nil
}

// Fallback is the verdict used when no model answer is available: it keeps
// the automatic primary framework.
func Fallback(l labeling.Labeled) labeling.Verdict {
	v := labeling.Verdict{
		PrimaryFramework: l.PrimaryFramework,
		Confidence:       labeling.ConfidenceLow,
		Rationale:        FallbackRationale,
	}
	if l.ConfidenceLevel == scoring.Level2 {
		v.Confidence = labeling.ConfidenceMedium
	}
	if l.Scored != nil {
		for i, r := range l.Scored.Ranking {
			if i == 0 {
				continue
			}
			if i > 2 {
				break
			}
			v.CompetingFrameworks = append(v.CompetingFrameworks, r.Framework)
		}
	}
	return v
}

// AgreeReply is an offline model for the fake provider: it confirms the
// current classification, or picks the top competitor when there is none.
func AgreeReply(_ context.Context, _ string, input any) (json.RawMessage, error) {
	var req Request
	switch in := input.(type) {
	case Request:
		req = in
	case *Request:
		if in != nil {
			req = *in
		}
	default:
		return nil, llm.NewPermanentError(fmt.Errorf("adjudicate: unexpected input %T", input))
	}

	v := labeling.Verdict{
		PrimaryFramework: req.Current.PrimaryFramework,
		Confidence:       labeling.ConfidenceMedium,
		Rationale:        "offline review agreed with the automatic classification",
	}
	competing := req.Current.Competing
	if v.PrimaryFramework == "" && len(competing) > 0 {
		v.PrimaryFramework = competing[0]
		v.Confidence = labeling.ConfidenceLow
		v.Rationale = "offline review picked the highest scoring framework"
	}
	for _, fw := range competing {
		if fw != v.PrimaryFramework {
			v.CompetingFrameworks = append(v.CompetingFrameworks, fw)
		}
	}
	return json.Marshal(v)
}
