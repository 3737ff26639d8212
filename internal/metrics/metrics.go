package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coolchat_store_writes_total",
		Help: "Store upserts issued, by collection and outcome.",
	}, []string{"collection", "status"})

	SnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coolchat_snapshots_total",
		Help: "Subscription snapshots processed, by collection.",
	}, []string{"collection"})

	LiveDrafts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coolchat_live_drafts",
		Help: "Drafts currently inside the visibility window.",
	})

	OnlineMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coolchat_online_members",
		Help: "Identities currently inside the presence TTL.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
