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

	"github.com/google/uuid"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/physics"
	"github.com/san-kum/robosim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

// ErrRunNotFound is returned when no run directory matches an ID.
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
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       uint64             `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Plant      string             `json:"plant,omitempty"`
	Integrator string             `json:"integrator,omitempty"`
	Controller string             `json:"controller,omitempty"`
	Steps      int                `json:"steps"`
	Columns    []string           `json:"columns"`
	Metrics    map[string]float64 `json:"metrics"`
	Events     map[string]int     `json:"events,omitempty"`
	Landmarks  []physics.Landmark `json:"landmarks,omitempty"`
}

// Columns returns the states.csv header for a result of kind k, without the
// leading time column.
func Columns(k sim.Kind) []string {
	if k == sim.KindVehicle {
		return []string{
			"x", "y", "yaw", "v",
			"cmd_v", "cmd_yaw_rate",
			"est_x", "est_y", "est_yaw", "est_v",
			"dr_x", "dr_y", "dr_yaw", "dr_v",
			"cov_trace",
		}
	}
	return []string{"x", "v", "theta", "omega", "force"}
}

// Save writes meta and result under a fresh run ID and returns the ID. The
// caller fills the descriptive fields of meta; the rest come from result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	if result == nil {
		return "", dynamo.NewConfigError("result", nil, "missing")
	}
	runID := fmt.Sprintf("%s_%s", meta.Scenario, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Steps = result.StepsTaken
	meta.Columns = Columns(result.Kind)
	meta.Metrics = result.Metrics
	meta.Events = result.Events

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), NewTable(result)); err != nil {
		return "", err
	}
	return runID, nil
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

// NewTable flattens a result into the rows written to states.csv.
// Controls lag states by one sample, so the first row carries a zero
// command.
func NewTable(result *sim.Result) *Table {
	t := &Table{
		Columns: Columns(result.Kind),
		Times:   append([]float64(nil), result.Times...),
		Rows:    make([][]float64, len(result.States)),
	}

	nu := 1
	if result.Kind == sim.KindVehicle {
		nu = 2
	}
	for i := range result.States {
		row := make([]float64, 0, len(t.Columns))
		row = append(row, result.States[i]...)
		if i > 0 && i-1 < len(result.Controls) {
			row = append(row, result.Controls[i-1]...)
		} else {
			row = append(row, make([]float64, nu)...)
		}
		if result.Kind == sim.KindVehicle {
			row = append(row, result.Estimates[i]...)
			row = append(row, result.DeadReckoning[i]...)
			row = append(row, result.CovTrace[i])
		}
		t.Rows[i] = row
	}
	return t
}

func writeStates(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, t.Columns...)); err != nil {
		return err
	}
	for i, row := range t.Rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, format(t.Times[i]))
		for _, v := range row {
			record = append(record, format(v))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// List returns every readable run, oldest first. Directories without valid
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
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	return &meta, nil
}

// Table is the numeric content of a states.csv file.
type Table struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the named column, or false when it does not exist.
func (t *Table) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

func (s *Store) LoadTable(runID string) (*Table, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	t := &Table{}
	if len(records) == 0 {
		return t, nil
	}
	t.Columns = append([]string(nil), records[0][1:]...)

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		ts, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: time %q: %w", runID, record[0], err)
		}
		row := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: value %q: %w", runID, field, err)
			}
			row = append(row, v)
		}
		t.Times = append(t.Times, ts)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
