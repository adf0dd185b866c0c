package practice

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/skeleton"
)

// maxStatPoints bounds the per-run history, about 20 minutes at 30 fps.
const maxStatPoints = 36000

// JointStat is the alignment record of one tracked joint.
type JointStat struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Samples int     `json:"samples"`
	Ratio   float64 `json:"ratio"`
}

// Summary describes a run's alignment history.
type Summary struct {
	Frames    int         `json:"frames"`
	MeanRatio float64     `json:"mean_ratio"`
	StdDev    float64     `json:"std_dev"`
	Joints    []JointStat `json:"joints"`
}

// Stats accumulates alignment results over a practice run.
type Stats struct {
	mu     sync.Mutex
	times  []float64 // seconds since the first record
	ratios []float64
	joints map[int][]float64 // 1 aligned, 0 not
	origin int64
}

// NewStats creates an empty accumulator.
func NewStats() *Stats {
	return &Stats{joints: make(map[int][]float64)}
}

// Record adds one scored frame taken at timestampMs. Frames without any
// expert joint to compare against are skipped.
func (s *Stats) Record(timestampMs int64, res align.Result) {
	compared := false
	for _, j := range res.Joints {
		compared = compared || j.HasExpert
	}
	if !compared {
		return
	}
	ratio := res.Ratio()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ratios) >= maxStatPoints {
		return
	}
	if len(s.ratios) == 0 {
		s.origin = timestampMs
	}
	s.times = append(s.times, float64(timestampMs-s.origin)/1000)
	s.ratios = append(s.ratios, ratio)
	for _, j := range res.Joints {
		if !j.HasExpert {
			continue
		}
		v := 0.0
		if j.Aligned {
			v = 1
		}
		s.joints[j.Index] = append(s.joints[j.Index], v)
	}
}

// Series returns copies of the time (seconds) and aligned-ratio series.
func (s *Stats) Series() (times, ratios []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.times...), append([]float64(nil), s.ratios...)
}

// Summary computes the run statistics.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Summary{Frames: len(s.ratios), Joints: []JointStat{}}
	if len(s.ratios) > 0 {
		out.MeanRatio, out.StdDev = stat.MeanStdDev(s.ratios, nil)
		if len(s.ratios) == 1 {
			out.StdDev = 0
		}
	}
	for _, idx := range skeleton.TrackedJoints {
		vals := s.joints[idx]
		if len(vals) == 0 {
			continue
		}
		out.Joints = append(out.Joints, JointStat{
			Index:   idx,
			Name:    detector.Names[idx],
			Samples: len(vals),
			Ratio:   stat.Mean(vals, nil),
		})
	}
	return out
}

// Reset clears the history.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times, s.ratios = nil, nil
	s.joints = make(map[int][]float64)
}
