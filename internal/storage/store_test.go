package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
)

func sampleRun(t *testing.T) (*Store, string, *dynamo.Result) {
	t.Helper()

	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	dp := physics.NewDoublePendulum()
	result := &dynamo.Result{
		States: []dynamo.State{
			{2.0943951023931953, 0, -0.17453292519943295, 0},
			{2.07, -0.91, -0.16, 0.42},
		},
		Times:       []float64{0, 0.05},
		Metrics:     map[string]float64{"energy_drift": 1e-8},
		EnergyDrift: 1e-8,
		StepsTaken:  3,
		Rejected:    1,
	}

	meta := &RunMetadata{
		Model:      "double_pendulum",
		Seed:       42,
		Dt:         0.05,
		Duration:   0.1,
		Integrator: "rk45",
		Tolerance:  1e-9,
		Params:     dp.GetParams(),
		InitState:  result.States[0],
	}
	runID, err := st.Save(meta, dp, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" || meta.ID != runID {
		t.Fatalf("expected run id to be set, got %q / %q", runID, meta.ID)
	}
	return st, runID, result
}

func TestStoreSaveLoad(t *testing.T) {
	st, runID, result := sampleRun(t)

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Model != "double_pendulum" || meta.Seed != 42 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Samples != 2 || meta.StepsTaken != 3 || meta.Rejected != 1 || meta.StateDim != 4 {
		t.Errorf("unexpected run counters: %+v", meta)
	}
	want := "theta1,omega1,theta2,omega2,x1,y1,x2,y2,energy"
	if got := strings.Join(meta.Columns, ","); got != want {
		t.Errorf("expected columns %s, got %s", want, got)
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if len(states) != 2 || len(times) != 2 {
		t.Fatalf("expected 2 samples, got %d states and %d times", len(states), len(times))
	}
	for i := range states {
		for j := range states[i] {
			if states[i][j] != result.States[i][j] {
				t.Errorf("state[%d][%d]: expected %v, got %v", i, j, result.States[i][j], states[i][j])
			}
		}
	}
}

func TestStoreDerivedColumns(t *testing.T) {
	st, runID, result := sampleRun(t)

	table, err := st.LoadTable(runID)
	if err != nil {
		t.Fatalf("load table failed: %v", err)
	}

	dp := physics.NewDoublePendulum()
	x1, y1, x2, y2 := dp.Positions(result.States[0])
	checks := map[string]float64{
		"x1": x1, "y1": y1, "x2": x2, "y2": y2,
		"energy": dp.Energy(result.States[0]),
	}
	for name, want := range checks {
		col := table.Column(name)
		if len(col) != 2 {
			t.Fatalf("column %s: expected 2 values, got %d", name, len(col))
		}
		if math.Abs(col[0]-want) > 1e-12 {
			t.Errorf("column %s: expected %v, got %v", name, want, col[0])
		}
	}
	if table.Column("missing") != nil {
		t.Error("expected nil for unknown column")
	}
}

func TestStoreSingleDimensionFallback(t *testing.T) {
	st := New(t.TempDir())
	p := physics.NewPendulum()
	result := &dynamo.Result{States: []dynamo.State{{0.1, 0}}, Times: []float64{0}}

	runID, err := st.Save(&RunMetadata{Model: "pendulum"}, p, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := strings.Join(meta.Columns, ","); got != "theta,omega,energy" {
		t.Errorf("unexpected columns %s", got)
	}
}

func TestStoreList(t *testing.T) {
	st, runID, _ := sampleRun(t)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("expected one run %s, got %+v", runID, runs)
	}

	empty := New(filepath.Join(t.TempDir(), "absent"))
	runs, err = empty.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list for missing dir, got %v, %v", runs, err)
	}
}

func TestStoreRunNotFound(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadTable("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := st.ExportJSON("nope", &bytes.Buffer{}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	st, runID, _ := sampleRun(t)

	var buf bytes.Buffer
	if err := st.ExportJSON(runID, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Metadata.ID != runID || len(data.Times) != 2 || len(data.Rows) != 2 {
		t.Errorf("unexpected export: %+v", data)
	}
	if len(data.Rows[0]) != len(data.Columns) {
		t.Errorf("row width %d does not match %d columns", len(data.Rows[0]), len(data.Columns))
	}
}

func TestExportCSV(t *testing.T) {
	st, runID, _ := sampleRun(t)

	var buf bytes.Buffer
	if err := st.ExportCSV(runID, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "time,theta1,omega1,theta2,omega2,x1,y1,x2,y2,energy" {
		t.Errorf("unexpected header %s", lines[0])
	}
}

func TestExportXLSX(t *testing.T) {
	st, runID, _ := sampleRun(t)

	path := filepath.Join(t.TempDir(), "run.xlsx")
	if err := st.ExportXLSX(runID, path); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(statesSheet)
	if err != nil {
		t.Fatalf("read states sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "time" || rows[0][1] != "theta1" || rows[0][9] != "energy" {
		t.Errorf("unexpected header %v", rows[0])
	}

	model, err := f.GetCellValue(summarySheet, "B3")
	if err != nil || model != "double_pendulum" {
		t.Errorf("expected model in summary, got %q (%v)", model, err)
	}
}
