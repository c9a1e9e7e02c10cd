package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarkedTotal counts attendance records written, by status.
	MarkedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marked_total",
		Help: "Attendance records written, by status.",
	}, []string{"status"})

	// WindowRejections counts mark attempts outside the operational window.
	WindowRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_window_rejections_total",
		Help: "Mark attempts rejected by the operational window gate.",
	})

	// SyncFailures counts monthly aggregate sync failures after daily writes.
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monthly_sync_failures_total",
		Help: "Monthly aggregate sync failures following a daily write.",
	})

	// Rebuilds counts full student-month aggregate rebuilds.
	Rebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monthly_rebuilds_total",
		Help: "Student-month aggregates rebuilt from daily records.",
	})
)
