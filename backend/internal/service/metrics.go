package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filelink_resolve_total",
			Help: "Mapping lookups by outcome",
		},
		[]string{"outcome"}, // cache, direct, scan, not_found
	)

	scanPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filelink_scan_pages_total",
			Help: "History pages fetched while scanning",
		},
		[]string{"source"},
	)

	scanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filelink_scan_errors_total",
			Help: "History sources abandoned because of transport errors",
		},
		[]string{"source"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filelink_uploads_total",
			Help: "Upload attempts by outcome",
		},
		[]string{"outcome"}, // ok, failed
	)

	postActionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filelink_upload_post_action_failures_total",
			Help: "Best-effort upload writes that failed",
		},
		[]string{"action"},
	)
)
