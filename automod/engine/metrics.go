package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "watchtower_event_duration_sec",
	Help: "Total duration of moderation event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_event_processed",
	Help: "Number of events processed, by terminal pipeline stage",
}, []string{"type", "outcome"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var actuatorErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_actuator_errors",
	Help: "Number of enforcement calls which failed (swallowed)",
}, []string{"action"})

var classifyCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_verdict_cache",
	Help: "Verdict cache lookups, by result",
}, []string{"result"})
