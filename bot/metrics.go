package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsDroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jim_shard_events_dropped_total",
	Help: "Events dropped because the shard queue was full",
}, []string{"shard"})

var metricsShardsOpen = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "jim_shards_open",
	Help: "Number of shards with an open gateway connection",
})
