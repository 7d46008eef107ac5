// Package metrics counts what happened during a run.
package metrics

import (
	"fmt"
	"io"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Metric names.
const (
	FilesSeen          = "files.seen"
	ResourcesAnnounced = "resources.announced"
	ResourcesRejected  = "resources.rejected"
	ResourcesSkipped   = "resources.skipped"
	ResourcesFailed    = "resources.failed"
	ParseRequest       = "parse.request"
)

// Recorder 封装一个独立的 go-metrics registry，避免测试之间共享全局状态。
type Recorder struct {
	registry  gometrics.Registry
	seen      gometrics.Counter
	announced gometrics.Counter
	rejected  gometrics.Counter
	skipped   gometrics.Counter
	failed    gometrics.Counter
	requests  gometrics.Timer
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := gometrics.NewRegistry()
	return &Recorder{
		registry:  r,
		seen:      gometrics.GetOrRegisterCounter(FilesSeen, r),
		announced: gometrics.GetOrRegisterCounter(ResourcesAnnounced, r),
		rejected:  gometrics.GetOrRegisterCounter(ResourcesRejected, r),
		skipped:   gometrics.GetOrRegisterCounter(ResourcesSkipped, r),
		failed:    gometrics.GetOrRegisterCounter(ResourcesFailed, r),
		requests:  gometrics.GetOrRegisterTimer(ParseRequest, r),
	}
}

func (r *Recorder) FileSeen()  { r.seen.Inc(1) }
func (r *Recorder) Announced() { r.announced.Inc(1) }
func (r *Recorder) Rejected()  { r.rejected.Inc(1) }
func (r *Recorder) Skipped()   { r.skipped.Inc(1) }
func (r *Recorder) Failed()    { r.failed.Inc(1) }

// TimeRequest records the duration of one Parse request.
func (r *Recorder) TimeRequest(start time.Time) {
	r.requests.UpdateSince(start)
}

// Summary is a snapshot of the counters.
type Summary struct {
	Seen      int64
	Announced int64
	Rejected  int64
	Skipped   int64
	Failed    int64
}

func (s Summary) String() string {
	return fmt.Sprintf("seen=%d announced=%d rejected=%d skipped=%d failed=%d",
		s.Seen, s.Announced, s.Rejected, s.Skipped, s.Failed)
}

// Snapshot returns the current counter values.
func (r *Recorder) Snapshot() Summary {
	return Summary{
		Seen:      r.seen.Count(),
		Announced: r.announced.Count(),
		Rejected:  r.rejected.Count(),
		Skipped:   r.skipped.Count(),
		Failed:    r.failed.Count(),
	}
}

// Dump writes every metric of the registry in go-metrics' text format.
func (r *Recorder) Dump(w io.Writer) {
	gometrics.WriteOnce(r.registry, w)
}
