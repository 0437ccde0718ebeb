package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/dynamo"
)

// ErrRunNotFound is returned when a run directory has no metadata.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Spec         string             `json:"spec,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	Species      []string           `json:"species"`
	InitialState []NamedValue       `json:"initial_state"`
	Rates        []NamedValue       `json:"rates"`
	Reactions    []string           `json:"reactions"`
	Dt           float64            `json:"dt"`
	Duration     float64            `json:"duration"`
	Integrator   string             `json:"integrator"`
	Tolerance    float64            `json:"tolerance,omitempty"`
	Samples      int                `json:"samples"`
	StepsTaken   int                `json:"steps_taken"`
	Rejected     int                `json:"rejected"`
	Metrics      map[string]float64 `json:"metrics"`
	Errors       []string           `json:"errors,omitempty"`
}

// NewMetadata describes a run of model. ID and Timestamp are set by Save.
func NewMetadata(model *crn.Model, spec, integrator string, cfg dynamo.Config, result *dynamo.Result) RunMetadata {
	meta := RunMetadata{
		Name:       model.Name(),
		Spec:       spec,
		Species:    model.Species(),
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: integrator,
		Metrics:    map[string]float64{},
	}
	if cfg.Adaptive {
		meta.Tolerance = cfg.Tolerance
	}

	for _, a := range model.InitialState() {
		meta.InitialState = append(meta.InitialState, NamedValue{Name: a.Species, Value: a.Value})
	}
	rates := model.Rates()
	for i, name := range rates.Names {
		meta.Rates = append(meta.Rates, NamedValue{Name: name, Value: rates.Values[i]})
	}
	for _, r := range model.Reactions() {
		meta.Reactions = append(meta.Reactions, r.Expr)
	}

	if result != nil {
		meta.Samples = len(result.States)
		meta.StepsTaken = result.StepsTaken
		meta.Rejected = result.Rejected
		meta.Metrics = result.Metrics
		for _, err := range result.Errors {
			meta.Errors = append(meta.Errors, err.Error())
		}
	}
	return meta
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func runID(name string) string {
	slug := unsafeChars.ReplaceAllString(name, "_")
	if slug == "" {
		slug = "run"
	}
	return fmt.Sprintf("%s_%s", slug, uuid.NewString()[:8])
}

// Save writes metadata.json and states.csv into a new run directory and
// returns the run id.
func (s *Store) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	meta.ID = runID(meta.Name)
	meta.Timestamp = time.Now()
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, meta.Species, result.Times, result.States); err != nil {
		return "", err
	}
	return meta.ID, csvFile.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
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

// LoadStates reads the trajectory of a run back from states.csv.
func (s *Store) LoadStates(runID string) ([]dynamo.State, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return []dynamo.State{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([]dynamo.State, 0, len(records)-1)

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("states.csv line %d: %w", i+1, err)
		}

		state := make(dynamo.State, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("states.csv line %d: %w", i+1, err)
			}
			state = append(state, val)
		}

		times = append(times, t)
		states = append(states, state)
	}

	return states, times, nil
}
