package dailylog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yukti-backend/records"
	"yukti-backend/store"
)

func newService() (*Service, *store.Memory) {
	kv := store.NewMemory()
	svc := NewService(kv)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC) }
	return svc, kv
}

func TestClassify(t *testing.T) {
	log := func(n int) *records.DailyLog {
		l := &records.DailyLog{}
		for i := 0; i < n; i++ {
			l.MedsTaken = append(l.MedsTaken, string(rune('a'+i)))
		}
		return l
	}
	assert.Equal(t, NoData, Classify(nil, 3))
	assert.Equal(t, Perfect, Classify(log(3), 3))
	assert.Equal(t, Perfect, Classify(log(4), 3))
	assert.Equal(t, Partial, Classify(log(1), 3))
	assert.Equal(t, Missed, Classify(log(0), 3))
	assert.Equal(t, Missed, Classify(log(0), 0))
	assert.Equal(t, Partial, Classify(log(2), 0))
}

func TestGet_LazyAndNotPersisted(t *testing.T) {
	ctx := context.Background()
	svc, kv := newService()

	log, err := svc.Get(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", log.Date)
	assert.Empty(t, log.MedsTaken)

	keys, err := kv.Keys(ctx, store.PrefixDailyLog)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = svc.Get(ctx, "03/01/2024")
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestToggleMed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	log, err := svc.ToggleMed(ctx, "2024-03-01", "Metformin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metformin"}, log.MedsTaken)

	log, err = svc.ToggleMed(ctx, "2024-03-01", "Aspirin")
	require.NoError(t, err)
	assert.True(t, log.Taken("aspirin"))

	log, err = svc.ToggleMed(ctx, "2024-03-01", "metformin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Aspirin"}, log.MedsTaken)

	adh, err := svc.Adherence(ctx, "2024-03-01", 2)
	require.NoError(t, err)
	assert.Equal(t, Partial, adh)
	adh, err = svc.Adherence(ctx, "2024-03-02", 2)
	require.NoError(t, err)
	assert.Equal(t, NoData, adh)
}

func TestSaveWellness_KeepsMeds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, err := svc.ToggleMed(ctx, "2024-03-01", "Metformin")
	require.NoError(t, err)

	sys, dia := 128.0, 84.0
	notes := "felt dizzy after lunch"
	log, err := svc.SaveWellness(ctx, "2024-03-01", Wellness{
		Vitals: &records.Vitals{BPSys: &sys, BPDia: &dia},
		Habits: &records.Habits{MealPlanFollowed: true, ActivityMinutes: 30, HydrationGlasses: 6},
		Notes:  &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Metformin"}, log.MedsTaken)
	require.NotNil(t, log.Vitals.BPSys)
	assert.Equal(t, 128.0, *log.Vitals.BPSys)
	assert.Nil(t, log.Vitals.Sugar)
	assert.Equal(t, 6, log.Habits.HydrationGlasses)
	assert.Equal(t, notes, log.Notes)
}

func TestLegacyLogMigratedOnRead(t *testing.T) {
	ctx := context.Background()
	svc, kv := newService()
	require.NoError(t, kv.Set(ctx, store.LegacyLogKey("2024-02-28"), []byte(`{"Metformin":true,"Aspirin":false,"Atorvastatin":true}`)))

	log, err := svc.Get(ctx, "2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, []string{"Atorvastatin", "Metformin"}, log.MedsTaken)

	_, err = kv.Get(ctx, store.LegacyLogKey("2024-02-28"))
	assert.True(t, errors.Is(err, store.ErrNotFound), "legacy key is removed after migration")
	_, err = kv.Get(ctx, store.DailyLogKey("2024-02-28"))
	assert.NoError(t, err)
}

func TestUnversionedLogFieldsUpgraded(t *testing.T) {
	ctx := context.Background()
	svc, kv := newService()
	bare := `{"meds":["Metformin","Aspirin"],"vitals":{"bpSys":120},"habits":{"mealPlan":true,"activity":30,"hydration":6.4},"notes":"ok"}`
	require.NoError(t, kv.Set(ctx, store.DailyLogKey("2024-03-05"), []byte(bare)))

	log, err := svc.Get(ctx, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metformin", "Aspirin"}, log.MedsTaken)
	require.NotNil(t, log.Habits)
	assert.Equal(t, records.Habits{MealPlanFollowed: true, ActivityMinutes: 30, HydrationGlasses: 6}, *log.Habits)
	assert.Equal(t, "ok", log.Notes)

	level, err := svc.Adherence(ctx, "2024-03-05", 2)
	require.NoError(t, err)
	assert.Equal(t, Perfect, level)

	raw, err := kv.Get(ctx, store.DailyLogKey("2024-03-05"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":2`)
	assert.Contains(t, string(raw), `"medsTaken"`)
}

func TestRangeAndCalendar(t *testing.T) {
	ctx := context.Background()
	svc, kv := newService()
	require.NoError(t, kv.Set(ctx, store.LegacyLogKey("2024-03-02"), []byte(`{"Metformin":true}`)))
	_, err := svc.ToggleMed(ctx, "2024-03-03", "Metformin")
	require.NoError(t, err)
	_, err = svc.ToggleMed(ctx, "2024-03-03", "Aspirin")
	require.NoError(t, err)
	_, err = svc.ToggleMed(ctx, "2024-04-01", "Metformin")
	require.NoError(t, err)

	logs, err := svc.Range(ctx, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2024-03-02", logs[0].Date)
	assert.Equal(t, "2024-03-03", logs[1].Date)

	days, err := svc.Calendar(ctx, "2024-03-01", "2024-03-03", 2)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, NoData, days[0].Adherence)
	assert.Equal(t, Partial, days[1].Adherence)
	assert.Equal(t, Perfect, days[2].Adherence)

	_, err = svc.Calendar(ctx, "2022-01-01", "2024-01-01", 1)
	assert.True(t, errors.Is(err, ErrRangeTooLong))
}

type fakeMeds []records.ActiveMedication

func (f fakeMeds) Active(context.Context) ([]records.ActiveMedication, error) { return f, nil }

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService()
	r := gin.New()
	NewHandler(svc, fakeMeds{{Name: "Metformin"}}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/logs/2024-03-10/meds/Metformin/toggle", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	body := `{"vitals":{"sugar":142},"habits":{"mealPlanFollowed":true,"activityMinutes":20,"hydrationGlasses":8}}`
	req := httptest.NewRequest(http.MethodPut, "/logs/2024-03-10/wellness", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		From string `json:"from"`
		Days []Day  `json:"days"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-02-10", resp.From)
	require.Len(t, resp.Days, 30)
	last := resp.Days[len(resp.Days)-1]
	assert.Equal(t, Perfect, last.Adherence)
	assert.True(t, last.HasVitals)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs/yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
