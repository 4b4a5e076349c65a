// Package storage keeps scripted runs on disk: one directory per session
// with metadata.json, a per-tick trace.csv and a top-down path.svg.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	metaFile  = "metadata.json"
	traceFile = "trace.csv"
	pathFile  = "path.svg"
)

var ErrNoRun = errors.New("storage: run not found")

var traceHeader = []string{
	"time", "technique", "phase", "hmd_distance", "multiplier",
	"controller_x", "controller_y", "controller_z",
	"virtual_x", "virtual_y", "virtual_z", "held",
}

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
	ID           string             `json:"id"`
	Technique    string             `json:"technique"`
	Scenario     string             `json:"scenario"`
	Timestamp    time.Time          `json:"timestamp"`
	Dt           float64            `json:"dt"`
	Duration     float64            `json:"duration"`
	Ticks        int                `json:"ticks"`
	Participants []string           `json:"participants"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Sample is one traced tick.
type Sample struct {
	Time        float64
	Technique   string
	Phase       string
	HMDDistance float64
	Multiplier  float64
	Controller  r3.Vec
	Virtual     r3.Vec
	Held        int
}

// Trace records a Sample per tick. It is a testbed.Observer.
type Trace struct {
	Samples []Sample
}

func (t *Trace) OnTick(s testbed.Snapshot) {
	virtual := s.Controller.Position
	if s.Reach != nil {
		virtual = s.VirtualPoint
	}
	t.Samples = append(t.Samples, Sample{
		Time:        s.Time,
		Technique:   s.Technique.String(),
		Phase:       s.Phase.String(),
		HMDDistance: s.Depth.DistanceFromHMD,
		Multiplier:  s.Depth.Multiplier,
		Controller:  s.Controller.Position,
		Virtual:     virtual,
		Held:        s.Held,
	})
}

// Save writes meta and the trace under a directory named after meta.ID.
func (s *Store) Save(meta RunMetadata, trace *Trace) (string, error) {
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%d", meta.Technique, time.Now().Unix())
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, metaFile))
	if err != nil {
		return "", err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if trace == nil || len(trace.Samples) == 0 {
		return meta.ID, nil
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), trace.Samples); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}

	hand := make([]Point, len(trace.Samples))
	virtual := make([]Point, len(trace.Samples))
	for i, sm := range trace.Samples {
		hand[i] = Point{X: sm.Controller.X, Y: sm.Controller.Z}
		virtual[i] = Point{X: sm.Virtual.X, Y: sm.Virtual.Z}
	}
	svg := PathsToSVG(640, 640, Path{Points: hand, Stroke: "#5fd7d7"}, Path{Points: virtual, Stroke: "#ff87ff"})
	if err := os.WriteFile(filepath.Join(runDir, pathFile), []byte(svg), 0644); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeTrace(path string, samples []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(traceHeader); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, sm := range samples {
		row := []string{
			ff(sm.Time), sm.Technique, sm.Phase, ff(sm.HMDDistance), ff(sm.Multiplier),
			ff(sm.Controller.X), ff(sm.Controller.Y), ff(sm.Controller.Z),
			ff(sm.Virtual.X), ff(sm.Virtual.Y), ff(sm.Virtual.Z),
			strconv.Itoa(sm.Held),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
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
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrace reads a run's trace. Rows that fail to parse are skipped.
func (s *Store) LoadTrace(runID string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []Sample{}, nil
		}
		return nil, err
	}

	samples := make([]Sample, 0)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if sm, ok := parseSample(record); ok {
			samples = append(samples, sm)
		}
	}
	return samples, nil
}

func parseSample(record []string) (Sample, bool) {
	if len(record) != len(traceHeader) {
		return Sample{}, false
	}
	nums := make([]float64, 0, 9)
	for _, i := range []int{0, 3, 4, 5, 6, 7, 8, 9, 10} {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return Sample{}, false
		}
		nums = append(nums, v)
	}
	held, err := strconv.Atoi(record[11])
	if err != nil {
		return Sample{}, false
	}
	return Sample{
		Time:        nums[0],
		Technique:   record[1],
		Phase:       record[2],
		HMDDistance: nums[1],
		Multiplier:  nums[2],
		Controller:  r3.Vec{X: nums[3], Y: nums[4], Z: nums[5]},
		Virtual:     r3.Vec{X: nums[6], Y: nums[7], Z: nums[8]},
		Held:        held,
	}, true
}
