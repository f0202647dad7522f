// Package analyze runs one analysis request end to end: context injection, prompt,
// model invocation with fallback, reconciliation of the output and persistence.
package analyze

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"yukti-backend/files"
	"yukti-backend/models"
	"yukti-backend/prompts"
	"yukti-backend/reconcile"
	"yukti-backend/records"
)

// Stage names reported to an Observer, in order.
type Stage string

const (
	StagePrompt  Stage = "prompt"
	StageInvoke  Stage = "invoke"
	StageParse   Stage = "parse"
	StagePersist Stage = "persist"
	StageDone    Stage = "done"
)

type Event struct {
	Stage  Stage  `json:"stage"`
	Detail string `json:"detail,omitempty"`
}

// Observer receives progress events. It is called synchronously from Run.
type Observer func(Event)

// ValidationError rejects a request before any model call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type Invoker interface {
	Invoke(ctx context.Context, req models.Request) (text, tier string, err error)
}

type HistoryStore interface {
	RecentN(ctx context.Context, n int) ([]records.AnalysisRecord, error)
	Append(ctx context.Context, rec records.AnalysisRecord) (records.AnalysisRecord, error)
	SaveSummary(ctx context.Context, s records.Summary, modelUsed string) (records.Summary, error)
}

type MedicationStore interface {
	ApplyExtraction(ctx context.Context, extracts []records.MedicineExtract) ([]records.ActiveMedication, error)
}

// ClinicalSource provides the stored risk profile context; ok is false when incomplete.
type ClinicalSource interface {
	ClinicalContext(ctx context.Context) (string, bool, error)
}

type Request struct {
	Mode            prompts.Mode
	File            *models.Attachment
	ClinicalContext string
	HistoryContext  string
}

// Result holds the record (document mode) or the summary (summary mode).
type Result struct {
	Mode      prompts.Mode
	Record    *records.AnalysisRecord
	Summary   *records.Summary
	ModelUsed string
	Degraded  bool
	// Warnings lists persistence steps that failed after a successful analysis.
	Warnings []string
}

// Payload is the value returned to callers as "result".
func (r Result) Payload() any {
	if r.Summary != nil {
		return r.Summary
	}
	return r.Record
}

type Pipeline struct {
	invoker  Invoker
	history  HistoryStore
	meds     MedicationStore
	clinical ClinicalSource
	logger   *zap.Logger
}

// NewPipeline wires the stages. history, meds and clinical may be nil.
func NewPipeline(inv Invoker, history HistoryStore, meds MedicationStore, clinical ClinicalSource, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{invoker: inv, history: history, meds: meds, clinical: clinical, logger: logger}
}

func (p *Pipeline) Run(ctx context.Context, req Request, obs Observer) (Result, error) {
	if obs == nil {
		obs = func(Event) {}
	}
	mode := req.Mode
	if mode == "" {
		mode = prompts.ModeDocument
	}
	log := p.logger.With(zap.String("mode", string(mode)))
	if mode == prompts.ModeDocument && (req.File == nil || len(req.File.Data) == 0) {
		return Result{}, &ValidationError{Msg: "No file provided"}
	}

	obs(Event{Stage: StagePrompt})
	prompt := prompts.Build(mode, p.clinicalContext(ctx, log, req.ClinicalContext), p.historyContext(ctx, log, mode, req.HistoryContext))

	obs(Event{Stage: StageInvoke})
	text, tier, err := p.invoker.Invoke(ctx, models.Request{Prompt: prompt, Attachment: req.File})
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		return Result{Mode: mode}, err
	}
	log.Info("model output received", zap.String("tier", tier), zap.Int("bytes", len(text)))

	obs(Event{Stage: StageParse})
	res := Result{Mode: mode, ModelUsed: tier}
	if mode == prompts.ModeSummary {
		err = p.summary(ctx, log, text, &res, obs)
	} else {
		p.document(ctx, log, text, req.File, &res, obs)
	}
	if err != nil {
		return res, err
	}
	obs(Event{Stage: StageDone, Detail: tier})
	return res, nil
}

func (p *Pipeline) summary(ctx context.Context, log *zap.Logger, text string, res *Result, obs Observer) error {
	s, err := reconcile.ParseSummary(text)
	if err != nil {
		log.Warn("summary output is not JSON", zap.String("tier", res.ModelUsed), zap.Int("bytes", len(text)))
		return err
	}
	obs(Event{Stage: StagePersist})
	if p.history != nil {
		saved, err := p.history.SaveSummary(ctx, s, res.ModelUsed)
		if err != nil {
			log.Error("save summary failed", zap.Error(err))
			res.Warnings = append(res.Warnings, "summary not saved: "+err.Error())
		} else {
			s = saved
		}
	}
	res.Summary = &s
	return nil
}

func (p *Pipeline) document(ctx context.Context, log *zap.Logger, text string, file *models.Attachment, res *Result, obs Observer) {
	rec, degraded := reconcile.ParseDocument(text)
	if degraded {
		log.Warn("unstructured model output, returning raw text", zap.String("tier", res.ModelUsed), zap.Int("bytes", len(text)))
	}
	rec.ModelUsed = res.ModelUsed
	if rec.Meta.PageCount == "" && file != nil && files.IsPDF(file.Data) {
		if n, err := files.PageCount(file.Data); err == nil {
			rec.Meta.PageCount = records.FlexString(strconv.Itoa(n))
		}
	}

	obs(Event{Stage: StagePersist})
	if p.history != nil {
		stored, err := p.history.Append(ctx, rec)
		if err != nil {
			log.Error("append history failed", zap.Error(err))
			res.Warnings = append(res.Warnings, "history not saved: "+err.Error())
		} else {
			rec = stored
		}
	}
	if p.meds != nil && len(rec.Medicines) > 0 {
		if _, err := p.meds.ApplyExtraction(ctx, rec.Medicines); err != nil {
			log.Error("medication reconciliation failed", zap.Error(err))
			res.Warnings = append(res.Warnings, "medications not updated: "+err.Error())
		}
	}
	res.Record = &rec
	res.Degraded = degraded
}

func (p *Pipeline) clinicalContext(ctx context.Context, log *zap.Logger, form string) string {
	if strings.TrimSpace(form) != "" {
		return form
	}
	if p.clinical == nil {
		return ""
	}
	text, ok, err := p.clinical.ClinicalContext(ctx)
	if err != nil {
		log.Warn("load clinical context", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return text
}

func (p *Pipeline) historyContext(ctx context.Context, log *zap.Logger, mode prompts.Mode, form string) string {
	if s := strings.TrimSpace(form); s != "" && s != "[]" {
		return form
	}
	if p.history == nil {
		return ""
	}
	n := 0
	if mode == prompts.ModeDocument {
		n = prompts.DocumentHistoryLimit
	}
	recent, err := p.history.RecentN(ctx, n)
	if err != nil {
		log.Warn("load history context", zap.Error(err))
		return ""
	}
	return prompts.HistoryContext(recent, mode)
}
