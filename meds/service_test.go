package meds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
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
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc, kv
}

func TestAdd_DerivesTimingAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	m, err := svc.Add(ctx, records.ActiveMedication{
		Name: "Metformin", Dosage: "1 tab",
		Slots: []string{"night", "Morning"}, RelationToFood: records.AfterFood,
	})
	require.NoError(t, err)
	assert.Equal(t, "Morning-Night (After Food)", m.Timing)
	assert.Equal(t, []string{records.SlotMorning, records.SlotNight}, m.Slots)
	assert.Equal(t, records.StatusActive, m.Status)
	assert.Equal(t, records.TypeChronic, m.Type)
	assert.Equal(t, "2024-03-01", m.StartDate)

	_, err = svc.Add(ctx, records.ActiveMedication{Name: "METFORMIN"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	_, err = svc.Add(ctx, records.ActiveMedication{Name: "X", Slots: []string{"Midnight"}})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = svc.Add(ctx, records.ActiveMedication{Name: " "})
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestArchiveRestore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, err := svc.Add(ctx, records.ActiveMedication{Name: "Aspirin"})
	require.NoError(t, err)

	require.NoError(t, svc.Archive(ctx, "aspirin"))
	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "archived entries are kept")

	// the name is free again once archived
	_, err = svc.Add(ctx, records.ActiveMedication{Name: "Aspirin", Dosage: "150mg"})
	require.NoError(t, err)
	assert.True(t, errors.Is(svc.Restore(ctx, "Aspirin"), ErrDuplicate))

	require.NoError(t, svc.Archive(ctx, "Aspirin"))
	require.NoError(t, svc.Restore(ctx, "Aspirin"))
	active, err = svc.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	assert.True(t, errors.Is(svc.Archive(ctx, "unknown"), store.ErrNotFound))
}

func TestUpdate_KeepsStatusAndStartDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, err := svc.Add(ctx, records.ActiveMedication{Name: "Losartan", StartDate: "2023-05-05"})
	require.NoError(t, err)

	out, err := svc.Update(ctx, "losartan", records.ActiveMedication{Name: "Losartan", Dosage: "50mg", Status: records.StatusArchived})
	require.NoError(t, err)
	assert.Equal(t, "50mg", out.Dosage)
	assert.Equal(t, records.StatusActive, out.Status)
	assert.Equal(t, "2023-05-05", out.StartDate)

	_, err = svc.Update(ctx, "nothing", records.ActiveMedication{Name: "nothing"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestApplyExtraction_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyExtraction(ctx, []records.MedicineExtract{{Name: "Metformin"}, {Name: "Atorvastatin"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoad_MigratesUnversionedList(t *testing.T) {
	ctx := context.Background()
	svc, kv := newService()
	require.NoError(t, kv.Set(ctx, store.KeyActiveMeds, []byte(`[{"name":"Thyronorm","dosage":"50mcg","timing":"Morning"}]`)))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, records.StatusActive, all[0].Status)
	assert.Equal(t, records.TypeChronic, all[0].Type)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService()
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/medications", `{"name":"Metformin","slots":["Morning"],"relationToFood":"Before Food"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"timing":"Morning (Before Food)"`)

	w = do(http.MethodPost, "/medications", `{"name":"metformin"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(http.MethodPut, "/medications/Metformin", `{"dosage":"2 tabs"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"dosage":"2 tabs"`)

	w = do(http.MethodPost, "/medications/Metformin/archive", ``)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(http.MethodGet, "/medications?status=active", ``)
	assert.Equal(t, "[]", w.Body.String())

	w = do(http.MethodPost, "/medications/Ghost/restore", ``)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
