package analyze

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"yukti-backend/assessment"
	"yukti-backend/history"
	"yukti-backend/meds"
	"yukti-backend/models"
	"yukti-backend/prompts"
	"yukti-backend/reconcile"
	"yukti-backend/records"
	"yukti-backend/risk"
	"yukti-backend/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const documentJSON = `{"meta":{"reportDate":"2024-03-01","reportType":"Lab","pageCount":1},"summary":"HbA1c high",` +
	`"clinicalCorrelation":"matches diabetes","biomarkers":[{"name":"HbA1c","value":"7.9","unit":"%","status":"High","trend":"New"}],` +
	`"analysis":"details","medicines":[{"name":"Metformin","type":"Chronic","dosage":"1 tab","timing":"After Food"}],"disclaimer":"d"}`

// scripted is a Generator returning fixed output and recording prompts.
type scripted struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (s *scripted) Generate(_ context.Context, req models.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Prompt)
	return s.text, s.err
}

type fixture struct {
	pipeline  *Pipeline
	primary   *scripted
	secondary *scripted
	history   *history.Service
	meds      *meds.Service
	assess    *assessment.Service
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T, primary, secondary *scripted) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	inv, err := models.NewInvoker(logger,
		models.Tier{Name: "gemini-2.5-flash", Generator: primary},
		models.Tier{Name: "gemini-2.5-flash-lite", Generator: secondary})
	require.NoError(t, err)

	kv := store.NewMemory()
	f := &fixture{
		primary:   primary,
		secondary: secondary,
		history:   history.New(kv),
		meds:      meds.NewService(kv),
		assess:    assessment.NewService(kv, risk.Default()),
		logs:      logs,
	}
	f.pipeline = NewPipeline(inv, f.history, f.meds, f.assess, logger)
	return f
}

func imageAttachment() *models.Attachment {
	return &models.Attachment{Name: "report.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func TestRun_DocumentPersistsHistoryAndMeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scripted{text: "```json\n" + documentJSON + "\n```"}, &scripted{})

	var stages []Stage
	res, err := f.pipeline.Run(ctx, Request{File: imageAttachment()}, func(e Event) { stages = append(stages, e.Stage) })
	require.NoError(t, err)
	assert.Equal(t, []Stage{StagePrompt, StageInvoke, StageParse, StagePersist, StageDone}, stages)
	assert.Equal(t, "gemini-2.5-flash", res.ModelUsed)
	require.NotNil(t, res.Record)
	assert.False(t, res.Degraded)
	assert.Equal(t, "HbA1c high", res.Record.Summary)
	assert.NotEmpty(t, res.Record.ID)

	hist, err := f.history.All(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "gemini-2.5-flash", hist[0].ModelUsed)

	active, err := f.meds.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Metformin", active[0].Name)

	require.Len(t, f.primary.prompts, 1)
	assert.Contains(t, f.primary.prompts[0], prompts.NoClinicalProfile)
	assert.Contains(t, f.primary.prompts[0], prompts.NoPreviousReports)

	// the second analysis sees the first one as history
	_, err = f.pipeline.Run(ctx, Request{File: imageAttachment()}, nil)
	require.NoError(t, err)
	assert.Contains(t, f.primary.prompts[1], `"summary":"HbA1c high"`)
	active, err = f.meds.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1, "same extraction twice keeps one entry")
}

func TestRun_FallbackReportsSecondary(t *testing.T) {
	f := newFixture(t, &scripted{err: errors.New("503 overloaded")}, &scripted{text: documentJSON})

	res, err := f.pipeline.Run(context.Background(), Request{File: imageAttachment()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash-lite", res.ModelUsed)
	assert.Equal(t, "gemini-2.5-flash-lite", res.Record.ModelUsed)
	assert.Equal(t, f.primary.prompts, f.secondary.prompts)

	entries := f.logs.FilterMessage("model output received").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gemini-2.5-flash-lite", entries[0].ContextMap()["tier"])
	assert.EqualValues(t, len(documentJSON), entries[0].ContextMap()["bytes"])
}

func TestRun_MissingFileFailsBeforeModel(t *testing.T) {
	f := newFixture(t, &scripted{text: documentJSON}, &scripted{})
	_, err := f.pipeline.Run(context.Background(), Request{Mode: prompts.ModeDocument}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "No file provided", verr.Msg)
	assert.Empty(t, f.primary.prompts)
}

func TestRun_BothTiersFail(t *testing.T) {
	f := newFixture(t, &scripted{err: errors.New("quota")}, &scripted{err: errors.New("timeout")})
	_, err := f.pipeline.Run(context.Background(), Request{File: imageAttachment()}, nil)
	var failure *models.AnalysisFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.StageInvocation, failure.Stage)

	hist, herr := f.history.All(context.Background())
	require.NoError(t, herr)
	assert.Empty(t, hist)
}

func TestRun_DegradedDocumentStillSaved(t *testing.T) {
	f := newFixture(t, &scripted{text: "The report shows mild anemia."}, &scripted{})
	res, err := f.pipeline.Run(context.Background(), Request{File: imageAttachment()}, nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, reconcile.DegradedSummary, res.Record.Summary)
	assert.Equal(t, "The report shows mild anemia.", res.Record.Analysis)
	assert.Len(t, f.logs.FilterMessage("unstructured model output, returning raw text").All(), 1)
}

func TestRun_NumericStrengthStillReconciled(t *testing.T) {
	ctx := context.Background()
	reply := "```json\n" + `{"summary":"HbA1c high","medicines":[{"name":"Metformin","type":"Chronic","strength":500}]}` + "\n```"
	f := newFixture(t, &scripted{text: reply}, &scripted{})

	res, err := f.pipeline.Run(ctx, Request{File: imageAttachment()}, nil)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "HbA1c high", res.Record.Summary)

	active, err := f.meds.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Metformin", active[0].Name)
	assert.Equal(t, "500", active[0].Strength)

	hist, err := f.history.All(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, records.FlexString("500"), hist[0].Medicines[0].Strength)
}

func TestRun_SummaryMode(t *testing.T) {
	ctx := context.Background()
	summary := `{"title":"Overview","patientRiskProfile":"Moderate","keyFindings":["HbA1c rising"],"trendAnalysis":"up","recommendation":"review"}`
	f := newFixture(t, &scripted{text: summary}, &scripted{})

	answers := map[string]string{}
	for _, q := range risk.Questions {
		answers[q.ID] = q.Options[0].Label
	}
	answers["q2"] = "Diabetes"
	_, err := f.assess.Save(ctx, answers)
	require.NoError(t, err)
	_, err = f.history.Append(ctx, records.AnalysisRecord{Summary: "older report"})
	require.NoError(t, err)

	res, err := f.pipeline.Run(ctx, Request{Mode: prompts.ModeSummary}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "Overview", res.Summary.Title)
	assert.True(t, res.Summary.IsSummary)

	prompt := f.primary.prompts[0]
	assert.Contains(t, prompt, "Total Risk: Healthy Baseline (15/175)")
	assert.Contains(t, prompt, "older report")

	latest, ok, err := f.history.LatestSummary(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash", latest.ModelUsed)
}

func TestRun_SummaryParseError(t *testing.T) {
	f := newFixture(t, &scripted{text: "Sorry, I cannot help."}, &scripted{})
	_, err := f.pipeline.Run(context.Background(), Request{Mode: prompts.ModeSummary}, nil)
	var perr *reconcile.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Sorry, I cannot help.", perr.Raw)
}

func TestRun_FormContextWins(t *testing.T) {
	f := newFixture(t, &scripted{text: documentJSON}, &scripted{})
	_, err := f.pipeline.Run(context.Background(), Request{
		File:            imageAttachment(),
		ClinicalContext: "Scores: custom",
		HistoryContext:  `[{"date":"2023-01-01","summary":"from the form","biomarkers":[]}]`,
	}, nil)
	require.NoError(t, err)
	p := f.primary.prompts[0]
	assert.True(t, strings.Contains(p, "Scores: custom"))
	assert.True(t, strings.Contains(p, "from the form"))
}
