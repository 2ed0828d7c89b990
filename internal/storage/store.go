package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/dpend/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

var ErrRunNotFound = errors.New("run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Model       string             `json:"model"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Tolerance   float64            `json:"tolerance"`
	MaxStep     float64            `json:"max_step,omitempty"`
	Params      map[string]float64 `json:"params"`
	InitState   []float64          `json:"init_state"`
	StateDim    int                `json:"state_dim"`
	Columns     []string           `json:"columns"`
	Samples     int                `json:"samples"`
	StepsTaken  int                `json:"steps_taken"`
	Rejected    int                `json:"rejected"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

// projector is implemented by models that can place their bobs in the plane.
type projector interface {
	Positions(x dynamo.State) (x1, y1, x2, y2 float64)
}

// StateColumns names the components of a state of the given dimension.
func StateColumns(dim int) []string {
	switch dim {
	case 4:
		return []string{"theta1", "omega1", "theta2", "omega2"}
	case 2:
		return []string{"theta", "omega"}
	}
	cols := make([]string, dim)
	for i := range cols {
		cols[i] = fmt.Sprintf("x%d", i)
	}
	return cols
}

// Save writes the metadata and the sampled trajectory to a new run
// directory. Bob positions and energy are appended to every row when dyn
// provides them. The generated run ID is returned and stored in meta.
func (s *Store) Save(meta *RunMetadata, dyn dynamo.System, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", meta.Model, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	proj, hasPositions := dyn.(projector)
	ham, hasEnergy := dyn.(dynamo.Hamiltonian)

	columns := StateColumns(dyn.StateDim())
	if hasPositions {
		columns = append(columns, "x1", "y1", "x2", "y2")
	}
	if hasEnergy {
		columns = append(columns, "energy")
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.StateDim = dyn.StateDim()
	meta.Columns = columns
	meta.Samples = len(result.States)
	meta.StepsTaken = result.StepsTaken
	meta.Rejected = result.Rejected
	meta.EnergyDrift = result.EnergyDrift
	meta.Metrics = result.Metrics

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)

	if err := w.Write(append([]string{"time"}, columns...)); err != nil {
		return "", err
	}

	for i, x := range result.States {
		row := make([]string, 0, len(columns)+1)
		row = append(row, formatFloat(result.Times[i]))
		for _, val := range x {
			row = append(row, formatFloat(val))
		}
		if hasPositions {
			x1, y1, x2, y2 := proj.Positions(x)
			row = append(row, formatFloat(x1), formatFloat(y1), formatFloat(x2), formatFloat(y2))
		}
		if hasEnergy {
			row = append(row, formatFloat(ham.Energy(x)))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns stored runs, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", runID, err)
	}

	return &meta, nil
}

// Table is a stored trajectory. Rows hold every column except time.
type Table struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the named column, or nil if the table has none.
func (t *Table) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	col := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[idx]
	}
	return col
}

func (s *Store) LoadTable(runID string) (*Table, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	table := &Table{}
	if len(records) == 0 {
		return table, nil
	}
	table.Columns = records[0][1:]
	table.Times = make([]float64, 0, len(records)-1)
	table.Rows = make([][]float64, 0, len(records)-1)

	for i, record := range records[1:] {
		values := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", statesFile, i+2, err)
			}
			values[j] = v
		}
		table.Times = append(table.Times, values[0])
		table.Rows = append(table.Rows, values[1:])
	}

	return table, nil
}

// LoadStates rebuilds the sampled states of a run.
func (s *Store) LoadStates(runID string) ([]dynamo.State, []float64, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	table, err := s.LoadTable(runID)
	if err != nil {
		return nil, nil, err
	}

	states := make([]dynamo.State, len(table.Rows))
	for i, row := range table.Rows {
		if len(row) < meta.StateDim {
			return nil, nil, fmt.Errorf("%w: row %d has %d values, want %d",
				dynamo.ErrDimensionMismatch, i, len(row), meta.StateDim)
		}
		states[i] = dynamo.State(row[:meta.StateDim]).Clone()
	}
	return states, table.Times, nil
}

// Result reassembles a run into a result for analysis.
func (s *Store) Result(runID string) (*RunMetadata, *dynamo.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, &dynamo.Result{
		States:      states,
		Times:       times,
		Metrics:     meta.Metrics,
		EnergyDrift: meta.EnergyDrift,
		StepsTaken:  meta.StepsTaken,
		Rejected:    meta.Rejected,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
