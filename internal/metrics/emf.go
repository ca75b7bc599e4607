// Package metrics emits booth metrics in the CloudWatch Embedded Metric
// Format: one JSON line per flush, which the CloudWatch agent (or any log
// shipper feeding CloudWatch Logs) turns into metrics without API calls.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Namespace is the CloudWatch namespace for booth metrics.
const Namespace = "Photobooth"

// BoothIDEnvVar names the environment variable holding the booth's identifier.
const BoothIDEnvVar = "PHOTOBOOTH_BOOTH_ID"

// Metric names emitted by the booth.
const (
	ShotCount     = "ShotCount"
	ComposeMs     = "ComposeMs"
	FrameFallback = "FrameFallback"
	FilterFailure = "FilterFailure"
	PrintCount    = "PrintCount"
	EmailCount    = "EmailCount"
)

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type directive struct {
	Timestamp         int64         `json:"Timestamp"`
	CloudWatchMetrics []metricGroup `json:"CloudWatchMetrics"`
}

type metricGroup struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder collects the dimensions, metrics and properties of one booth
// event. It is not safe for concurrent use.
type Recorder struct {
	namespace  string
	out        io.Writer
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]any
	properties map[string]any
}

var (
	initOnce sync.Once

	// outMu guards boothID, output and writes to output.
	outMu   sync.Mutex
	boothID string
	output  io.Writer = os.Stdout
)

func initBoothID() {
	id := os.Getenv(BoothIDEnvVar)
	outMu.Lock()
	boothID = id
	outMu.Unlock()
}

// SetOutput sends later flushes to w, or back to stdout when w is nil.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	outMu.Lock()
	output = w
	outMu.Unlock()
}

// SetBoothID overrides the BoothID dimension taken from PHOTOBOOTH_BOOTH_ID.
// An empty id keeps the environment value.
func SetBoothID(id string) {
	initOnce.Do(initBoothID)
	if id == "" {
		return
	}
	outMu.Lock()
	boothID = id
	outMu.Unlock()
}

// New returns a Recorder for namespace, carrying the BoothID dimension when
// one is configured.
func New(namespace string) *Recorder {
	initOnce.Do(initBoothID)
	outMu.Lock()
	out, id := output, boothID
	outMu.Unlock()

	r := &Recorder{
		namespace:  namespace,
		out:        out,
		dimensions: map[string]string{},
		metrics:    map[string]metricDef{},
		values:     map[string]any{},
		properties: map[string]any{},
	}
	if id != "" {
		r.Dimension("BoothID", id)
	}
	return r
}

func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric sets name to value. A later call with the same name replaces it.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count records one occurrence of name.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Duration records d in fractional milliseconds.
func (r *Recorder) Duration(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Microseconds())/1000, UnitMilliseconds)
}

// Property attaches a field that is logged but not indexed.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// document lays the recorder out as an EMF log event: properties first, so
// dimensions and metric values win on a name clash.
func (r *Recorder) document(now time.Time) map[string]any {
	doc := make(map[string]any, 1+len(r.properties)+len(r.dimensions)+len(r.values))
	maps.Copy(doc, r.properties)
	for k, v := range r.dimensions {
		doc[k] = v
	}
	maps.Copy(doc, r.values)

	defs := make([]metricDef, 0, len(r.metrics))
	for _, name := range slices.Sorted(maps.Keys(r.metrics)) {
		defs = append(defs, r.metrics[name])
	}
	doc["_aws"] = directive{
		Timestamp: now.UnixMilli(),
		CloudWatchMetrics: []metricGroup{{
			Namespace:  r.namespace,
			Dimensions: [][]string{slices.Sorted(maps.Keys(r.dimensions))},
			Metrics:    defs,
		}},
	}
	return doc
}

// Flush writes the event as a single JSON line. Nothing is written when no
// metric was recorded.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}
	line, err := json.Marshal(r.document(time.Now()))
	if err != nil {
		log.Warn().Err(err).Str("namespace", r.namespace).Msg("Dropping metrics event")
		return
	}
	line = append(line, '\n')

	outMu.Lock()
	defer outMu.Unlock()
	if _, err := r.out.Write(line); err != nil {
		log.Debug().Err(err).Msg("Metrics write failed")
	}
}
