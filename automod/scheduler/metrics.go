package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_scheduler_items_added",
	Help: "Number of tasks added to the scheduler",
}, []string{"ident"})

var itemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchtower_scheduler_items_processed",
	Help: "Number of tasks completed by the scheduler",
}, []string{"ident"})

var workersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "watchtower_scheduler_workers_active",
	Help: "Number of scheduler workers running",
}, []string{"ident"})
