// Package stats records per-step and per-drive results of a preparation
// run and formats them for display at exit.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/usbprep/internal/process"
)

// digestCompression keeps each step digest to ~100 centroids.
const digestCompression = 100

// stepStats accumulates the invocations of one step name.
type stepStats struct {
	count       int64
	exited      int64
	killed      int64
	spawnFailed int64
	nonZero     int64
	inputErrors int64
	maxDuration time.Duration
	durations   *tdigest.TDigest
}

// StepSummary is a point-in-time view of one step.
type StepSummary struct {
	Step        string
	Count       int64
	Exited      int64
	Killed      int64
	SpawnFailed int64
	NonZero     int64
	InputErrors int64
	P50         time.Duration
	P95         time.Duration
	Max         time.Duration
}

// DriveResult is the final result of preparing one drive.
type DriveResult struct {
	Drive    string
	Status   string
	Duration time.Duration
	Err      error
}

// Snapshot is a point-in-time view of a Recorder.
type Snapshot struct {
	Steps     []StepSummary
	Drives    []DriveResult
	ExitCodes map[int]int
	Elapsed   time.Duration
}

// Recorder collects invocation outcomes and drive results. It implements
// process.Observer and is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	start     time.Time
	steps     map[string]*stepStats
	exitCodes map[int]int
	drives    []DriveResult
	active    map[string]time.Time
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		start:     time.Now(),
		steps:     make(map[string]*stepStats),
		exitCodes: make(map[int]int),
		active:    make(map[string]time.Time),
	}
}

// InvocationStarted implements process.Observer.
func (r *Recorder) InvocationStarted(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[step] = time.Now()
}

// InvocationFinished implements process.Observer.
func (r *Recorder) InvocationFinished(out process.Outcome, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, out.Step)

	s, ok := r.steps[out.Step]
	if !ok {
		s = &stepStats{durations: tdigest.NewWithCompression(digestCompression)}
		r.steps[out.Step] = s
	}
	s.count++
	switch out.Completion {
	case process.CompletionExited:
		s.exited++
		if out.ExitCode != 0 {
			s.nonZero++
		}
		r.exitCodes[out.ExitCode]++
	case process.CompletionKilled:
		s.killed++
		r.exitCodes[out.ExitCode]++
	case process.CompletionSpawnFailed:
		s.spawnFailed++
	}
	if out.InputErr != nil {
		s.inputErrors++
	}
	if out.Duration > s.maxDuration {
		s.maxDuration = out.Duration
	}
	s.durations.Add(float64(out.Duration), 1)
}

// RecordDrive records the final result of one drive.
func (r *Recorder) RecordDrive(res DriveResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drives = append(r.drives, res)
}

// Running returns how long the named step has been running, or false if
// it is not running.
func (r *Recorder) Running(step string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	started, ok := r.active[step]
	if !ok {
		return 0, false
	}
	return time.Since(started), true
}

// Snapshot returns a copy of the recorded data. Steps are sorted by name.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Steps:     make([]StepSummary, 0, len(r.steps)),
		Drives:    append([]DriveResult(nil), r.drives...),
		ExitCodes: make(map[int]int, len(r.exitCodes)),
		Elapsed:   time.Since(r.start),
	}
	for code, n := range r.exitCodes {
		snap.ExitCodes[code] = n
	}
	for name, s := range r.steps {
		snap.Steps = append(snap.Steps, StepSummary{
			Step:        name,
			Count:       s.count,
			Exited:      s.exited,
			Killed:      s.killed,
			SpawnFailed: s.spawnFailed,
			NonZero:     s.nonZero,
			InputErrors: s.inputErrors,
			P50:         time.Duration(s.durations.Quantile(0.50)),
			P95:         time.Duration(s.durations.Quantile(0.95)),
			Max:         s.maxDuration,
		})
	}
	sort.Slice(snap.Steps, func(i, j int) bool {
		return snap.Steps[i].Step < snap.Steps[j].Step
	})
	return snap
}

// Failed returns the number of drives whose preparation failed.
func (s Snapshot) Failed() int {
	n := 0
	for _, d := range s.Drives {
		if d.Err != nil {
			n++
		}
	}
	return n
}
