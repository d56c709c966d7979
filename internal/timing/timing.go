package timing

import (
	"sync"
	"time"

	"github.com/OFFIS-RIT/matchgraph/pkg/logger"
)

// Stage is the measured duration of one pipeline step.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Recorder collects stage durations in the order the stages finished.
type Recorder struct {
	mu     sync.Mutex
	stages []Stage
	now    func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Track starts measuring stage and returns the function that stops it.
//
//	defer rec.Track("layout")()
func (r *Recorder) Track(stage string) func() {
	start := r.now()
	return func() {
		d := r.now().Sub(start)
		r.mu.Lock()
		r.stages = append(r.stages, Stage{Name: stage, Duration: d})
		r.mu.Unlock()
		logger.Debug("[Timing] Stage finished", "stage", stage, "duration", d)
	}
}

func (r *Recorder) Stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

// Total sums all recorded stages.
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, s := range r.Stages() {
		total += s.Duration
	}
	return total
}
