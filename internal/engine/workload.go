package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/rescale/interlink-transfers/internal/transfer"
)

// Workload describes a batch of generated jobs.
type Workload struct {
	Uploads     int
	Downloads   int
	MinSize     uint64
	MaxSize     uint64
	FailureRate float64 // Probability in [0, 1] that a job fails part way
}

// NewJobs generates the jobs of w, uploads first. Sizes are uniform in
// [MinSize, MaxSize]. Every job gets a fresh id and StateCell.
func NewJobs(w Workload, rng *rand.Rand) []Job {
	jobs := make([]Job, 0, w.Uploads+w.Downloads)
	add := func(dir transfer.Direction, n int) {
		for i := 1; i <= n; i++ {
			size := w.MinSize
			if w.MaxSize > w.MinSize {
				size += rng.Uint64N(w.MaxSize - w.MinSize + 1)
			}
			job := Job{
				ID:        transfer.NewID(),
				Name:      fmt.Sprintf("%s-%02d.dat", dir, i),
				Direction: dir,
				Size:      size,
				State:     transfer.NewStateCell(),
			}
			if size > 1 && rng.Float64() < w.FailureRate {
				job.FailAt = 1 + rng.Uint64N(size-1)
			}
			jobs = append(jobs, job)
		}
	}
	add(transfer.Upload, w.Uploads)
	add(transfer.Download, w.Downloads)
	return jobs
}
