package classify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var omniAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "watchtower_omni_api_duration_sec",
	Help: "Duration of moderation API requests",
})

var omniAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_omni_api_requests",
	Help: "Number of moderation API requests, by outcome",
}, []string{"status"})

var perspectiveAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "watchtower_perspective_api_duration_sec",
	Help: "Duration of attribute scoring API requests",
})

var perspectiveAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_perspective_api_requests",
	Help: "Number of attribute scoring API requests, by outcome",
}, []string{"status"})
