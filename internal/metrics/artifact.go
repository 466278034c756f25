package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(artifactRefreshTotal, playbackFailuresTotal) }

var (
	artifactRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_refresh_total",
			Help: "Signed URL refreshes for audio artifacts, by result.",
		},
		[]string{"result"}, // 'success', 'failure'
	)

	playbackFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_failures_total",
			Help: "Audio load failures seen by the player, by classification.",
		},
		[]string{"class"},
	)
)

func IncArtifactRefresh(result string) {
	artifactRefreshTotal.WithLabelValues(norm(result)).Inc()
}

func IncPlaybackFailure(class string) {
	playbackFailuresTotal.WithLabelValues(norm(class)).Inc()
}
