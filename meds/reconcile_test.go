package meds

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yukti-backend/records"
)

const today = "2024-03-01"

func TestReconcile_AppendsNewActiveEntry(t *testing.T) {
	out := Reconcile(nil, []records.MedicineExtract{
		{Name: " Metformin ", Strength: "500mg", Dosage: "1 tab", Timing: "After Food"},
		{Name: "Amoxicillin", Type: records.TypeAcute, Duration: "5 days"},
	}, today)

	require.Len(t, out, 2)
	assert.Equal(t, records.ActiveMedication{
		Name: "Metformin", Strength: "500mg", Dosage: "1 tab", Timing: "After Food",
		Type: records.TypeChronic, Status: records.StatusActive, StartDate: today,
	}, out[0])
	assert.Equal(t, records.TypeAcute, out[1].Type)
	assert.Equal(t, "5 days", out[1].Duration)
}

func TestReconcile_CaseInsensitiveMatchPreservesIdentity(t *testing.T) {
	current := []records.ActiveMedication{{
		Name: "Metformin", Dosage: "1 tab", Timing: "Morning (After Food)", Type: records.TypeChronic,
		Status: records.StatusActive, StartDate: "2023-06-10", Slots: []string{records.SlotMorning},
		RelationToFood: records.AfterFood, Remarks: "with breakfast",
	}}
	out := Reconcile(current, []records.MedicineExtract{{Name: "metformin", Dosage: "2 tabs", Strength: "1000mg"}}, today)

	require.Len(t, out, 1)
	m := out[0]
	assert.Equal(t, "Metformin", m.Name)
	assert.Equal(t, "2 tabs", m.Dosage)
	assert.Equal(t, "1000mg", m.Strength)
	assert.Equal(t, "Morning (After Food)", m.Timing, "empty extracted fields must not clear stored ones")
	assert.Equal(t, "2023-06-10", m.StartDate)
	assert.Equal(t, records.StatusActive, m.Status)
	assert.Equal(t, "with breakfast", m.Remarks)

	assert.Equal(t, "1 tab", current[0].Dosage, "input slice must not be modified")
}

func TestReconcile_Idempotent(t *testing.T) {
	batch := []records.MedicineExtract{{Name: "Atorvastatin", Dosage: "10mg", Timing: "Night"}}
	once := Reconcile(nil, batch, today)
	twice := Reconcile(once, batch, "2024-04-01")
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second merge changed the list (-once +twice):\n%s", diff)
	}
}

func TestReconcile_BatchDuplicatesCollapse(t *testing.T) {
	out := Reconcile(nil, []records.MedicineExtract{
		{Name: "Aspirin", Dosage: "75mg"},
		{Name: "ASPIRIN", Dosage: "150mg"},
		{Name: ""},
		{Name: "   "},
	}, today)
	require.Len(t, out, 1)
	assert.Equal(t, "Aspirin", out[0].Name)
	assert.Equal(t, "150mg", out[0].Dosage)
}

func TestReconcile_ArchivedEntryKeepsStatus(t *testing.T) {
	current := []records.ActiveMedication{{Name: "Ibuprofen", Status: records.StatusArchived, StartDate: "2023-01-01"}}
	out := Reconcile(current, []records.MedicineExtract{{Name: "ibuprofen", Dosage: "400mg"}}, today)
	require.Len(t, out, 1)
	assert.Equal(t, records.StatusArchived, out[0].Status)
	assert.Equal(t, "400mg", out[0].Dosage)
}

func TestTiming(t *testing.T) {
	assert.Equal(t, "Morning-Night (After Food)", Timing([]string{"Morning", "Night"}, records.AfterFood))
	assert.Equal(t, "Evening", Timing([]string{"Evening"}, ""))
	assert.Equal(t, "Before Food", Timing(nil, records.BeforeFood))
}
