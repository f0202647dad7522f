// Package models sends prompts to a generative model with an ordered primary/secondary fallback.
package models

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MaxTiers is the retry budget: one primary attempt and one fallback.
const MaxTiers = 2

// Attachment is a binary document sent alongside the prompt.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

type Request struct {
	Prompt     string
	Attachment *Attachment
}

// Generator is one model configuration able to turn a request into raw text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Tier names a generator; the name is reported back as modelUsed.
type Tier struct {
	Name      string
	Generator Generator
}

// AnalysisFailure is returned when every tier failed.
type AnalysisFailure struct {
	Stage string
	Cause error
}

func (e *AnalysisFailure) Error() string {
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Cause)
}

func (e *AnalysisFailure) Unwrap() error { return e.Cause }

// StageInvocation marks failures of the model call itself.
const StageInvocation = "invocation"

// Invoker tries its tiers in order, sequentially, each at most once.
type Invoker struct {
	tiers  []Tier
	logger *zap.Logger
}

func NewInvoker(logger *zap.Logger, tiers ...Tier) (*Invoker, error) {
	if len(tiers) == 0 || len(tiers) > MaxTiers {
		return nil, fmt.Errorf("models: need 1 to %d tiers, got %d", MaxTiers, len(tiers))
	}
	for _, t := range tiers {
		if t.Generator == nil || t.Name == "" {
			return nil, errors.New("models: tier needs a name and a generator")
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{tiers: tiers, logger: logger}, nil
}

// Tiers returns the tier names in the order they are tried.
func (i *Invoker) Tiers() []string {
	out := make([]string, len(i.tiers))
	for n, t := range i.tiers {
		out[n] = t.Name
	}
	return out
}

// Invoke returns the raw model text and the name of the tier that produced it.
func (i *Invoker) Invoke(ctx context.Context, req Request) (string, string, error) {
	var errs []error
	for n, t := range i.tiers {
		text, err := t.Generator.Generate(ctx, req)
		if err == nil {
			i.logger.Info("model responded",
				zap.String("tier", t.Name),
				zap.Int("bytes", len(text)),
				zap.Bool("fallback", n > 0),
			)
			return text, t.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		if n+1 < len(i.tiers) {
			i.logger.Warn("model tier failed, falling back",
				zap.String("tier", t.Name),
				zap.String("next", i.tiers[n+1].Name),
				zap.Error(err),
			)
		} else {
			i.logger.Error("model tier failed",
				zap.String("tier", t.Name),
				zap.Error(err),
			)
		}
	}
	return "", "", &AnalysisFailure{Stage: StageInvocation, Cause: errors.Join(errs...)}
}
