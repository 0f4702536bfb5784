// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesDissected counts frames run through the binding engine,
	// by outermost protocol.
	FramesDissected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_frames_dissected_total",
			Help: "Total number of frames dissected",
		},
		[]string{"proto"},
	)

	// DissectErrors counts frames the binding engine rejected.
	DissectErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strix_dissect_errors_total",
			Help: "Total number of frames that failed dissection",
		},
	)

	// BlocksRead counts pcapng blocks parsed, by block kind.
	BlocksRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_pcapng_blocks_read_total",
			Help: "Total number of pcapng blocks parsed",
		},
		[]string{"kind"},
	)

	// BlocksWritten counts pcapng blocks serialized, by block kind.
	BlocksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_pcapng_blocks_written_total",
			Help: "Total number of pcapng blocks written",
		},
		[]string{"kind"},
	)

	// CaptureFrames counts frames pulled from live handles.
	CaptureFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_capture_frames_total",
			Help: "Total number of frames read from capture handles",
		},
		[]string{"interface"},
	)
)
