// Package metrics exposes process state in the Prometheus text format.
// Families are built directly from client_model types on every scrape;
// there is no registry.
package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/autorecord/autorecord/internal/status"
)

// ViewSource provides the latest reconciled view.
type ViewSource interface {
	Current() (status.View, bool)
}

// LockStats is the lock registry's counters.
type LockStats interface {
	Len() int
	Refreshes() uint64
}

// AvatarStats is the image cache's counters.
type AvatarStats interface {
	Len() int
	Fetches() uint64
	Failures() uint64
}

// Sources are the components read on each scrape. Nil fields are skipped.
type Sources struct {
	View    ViewSource
	Locks   LockStats
	Avatars AvatarStats
}

// Gather builds the metric families, sorted by name.
func Gather(src Sources) []*dto.MetricFamily {
	var out []*dto.MetricFamily

	if src.View != nil {
		v, _ := src.View.Current()
		out = append(out,
			gauge("autorecord_live_users", "Live users in the last status cycle.", float64(v.LiveCount)),
			gauge("autorecord_recording_users", "Lock markers in the lock cache.", float64(v.RecordingCount)),
		)

		per := &dto.MetricFamily{
			Name: proto.String("autorecord_user_recording"),
			Help: proto.String("1 if a live user is being recorded, else 0."),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, r := range v.Rows {
			val := 0.0
			if r.Recording {
				val = 1
			}
			per.Metric = append(per.Metric, &dto.Metric{
				Label: []*dto.LabelPair{{Name: proto.String("user"), Value: proto.String(r.Username)}},
				Gauge: &dto.Gauge{Value: proto.Float64(val)},
			})
		}
		if len(per.Metric) > 0 {
			out = append(out, per)
		}
	}

	if src.Locks != nil {
		out = append(out,
			counter("autorecord_lock_refresh_total", "Completed lock cache refreshes.", float64(src.Locks.Refreshes())),
		)
	}

	if src.Avatars != nil {
		out = append(out,
			gauge("autorecord_avatar_cache_entries", "Processed profile pictures held in memory.", float64(src.Avatars.Len())),
			counter("autorecord_avatar_fetch_total", "Profile picture downloads attempted.", float64(src.Avatars.Fetches())),
			counter("autorecord_avatar_fetch_failures_total", "Profile picture downloads that failed.", float64(src.Avatars.Failures())),
		)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// Write encodes families in the text exposition format.
func Write(w io.Writer, mfs []*dto.MetricFamily) error {
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves GET /metrics.
func Handler(src Sources) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := Write(w, Gather(src)); err != nil {
			slog.Warn("metrics: write failed", "err", err)
		}
	})
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}
