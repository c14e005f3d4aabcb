package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/dynamo"
	"go.uber.org/multierr"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

var seriesHeader = []string{"time", "pv", "output", "setpoint"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a stored run. Infinite output limits are stored as
// null.
type RunMetadata struct {
	ID         string             `json:"id"`
	Plant      string             `json:"plant"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Controller string             `json:"controller"`
	Kp         float64            `json:"kp"`
	Ki         float64            `json:"ki"`
	Kd         float64            `json:"kd"`
	Setpoint   float64            `json:"setpoint"`
	OutputMin  *float64           `json:"output_min"`
	OutputMax  *float64           `json:"output_max"`
	Initial    float64            `json:"initial"`
	FinalPV    float64            `json:"final_pv"`
	Steps      int                `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Series is the sampled history of a run: one entry per control step.
type Series struct {
	Times    []float64 `json:"times"`
	PV       []float64 `json:"pv"`
	Output   []float64 `json:"output"`
	Setpoint []float64 `json:"setpoint"`
}

func (s *Series) Len() int { return len(s.Times) }

// NewSeries flattens a simulation result, taking x[0] as the process value.
func NewSeries(result *dynamo.Result) *Series {
	n := len(result.Controls)
	series := &Series{
		Times:    make([]float64, 0, n),
		PV:       make([]float64, 0, n),
		Output:   make([]float64, 0, n),
		Setpoint: make([]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		if len(result.States[i]) == 0 || len(result.Controls[i]) == 0 {
			continue
		}
		series.Times = append(series.Times, result.Times[i])
		series.PV = append(series.PV, result.States[i][0])
		series.Output = append(series.Output, result.Controls[i][0])
		sp := 0.0
		if i < len(result.Setpoints) {
			sp = result.Setpoints[i]
		}
		series.Setpoint = append(series.Setpoint, sp)
	}
	return series
}

// newRunID returns the unique part of a run ID.
var newRunID = func() string { return xid.New().String() }

// Save writes a run's metadata and series. A run that fails part way is
// removed so List never reports it.
func (s *Store) Save(cfg *config.Config, result *dynamo.Result) (runID string, err error) {
	runID = fmt.Sprintf("%s_%s", cfg.Plant, newRunID())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			runID = ""
			err = multierr.Append(err, os.RemoveAll(runDir))
		}
	}()

	min, max := cfg.OutputLimits()
	meta := RunMetadata{
		ID:         runID,
		Plant:      cfg.Plant,
		Timestamp:  time.Now(),
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Controller: cfg.Controller,
		Kp:         cfg.ControllerParams.Kp,
		Ki:         cfg.ControllerParams.Ki,
		Kd:         cfg.ControllerParams.Kd,
		Setpoint:   cfg.ControllerParams.Setpoint,
		OutputMin:  finite(min),
		OutputMax:  finite(max),
		Initial:    cfg.Initial,
		Steps:      result.StepsTaken,
		Metrics:    make(map[string]float64, len(result.Metrics)),
	}
	if n := len(result.States); n > 0 && len(result.States[n-1]) > 0 {
		meta.FinalPV = result.States[n-1][0]
	}
	for k, v := range result.Metrics {
		if finite(v) != nil {
			meta.Metrics[k] = v
		}
	}

	if err = writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return "", err
	}
	defer func() { err = multierr.Append(err, csvFile.Close()) }()

	if err = WriteCSV(csvFile, NewSeries(result)); err != nil {
		return "", err
	}

	return runID, nil
}

// WriteCSV writes a series with the time,pv,output,setpoint header.
func WriteCSV(out io.Writer, series *Series) error {
	w := csv.NewWriter(out)

	if err := w.Write(seriesHeader); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for i := range series.Times {
		row := []string{
			format(series.Times[i]),
			format(series.PV[i]),
			format(series.Output[i]),
			format(series.Setpoint[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns stored runs, oldest first.
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
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses what WriteCSV wrote. Malformed rows are skipped.
func ReadCSV(in io.Reader) (*Series, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{}
	if len(records) < 2 {
		return series, nil
	}

	for _, record := range records[1:] {
		if len(record) < len(seriesHeader) {
			continue
		}

		var vals [4]float64
		ok := true
		for j := range vals {
			vals[j], err = strconv.ParseFloat(record[j], 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		series.Times = append(series.Times, vals[0])
		series.PV = append(series.PV, vals[1])
		series.Output = append(series.Output, vals[2])
		series.Setpoint = append(series.Setpoint, vals[3])
	}

	return series, nil
}

func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
