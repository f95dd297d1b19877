package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(resultsResolved, metadataMalformed, assetRequests) }

var (
	resultsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_results_resolved_total",
			Help: "Result resolutions by the source that answered.",
		},
		[]string{"source"}, // database, filesystem, manifest, none
	)

	metadataMalformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_metadata_malformed_total",
			Help: "Metadata or manifest files that could not be used.",
		},
		[]string{"kind"}, // metadata, manifest
	)

	assetRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_asset_requests_total",
			Help: "Static asset requests by outcome.",
		},
		[]string{"outcome"}, // served, not_found, forbidden
	)
)

// ResultsResolved counts a resolution answered by source
func ResultsResolved(source string) {
	resultsResolved.WithLabelValues(norm(source)).Inc()
}

// MetadataMalformed counts an unusable metadata file of the given kind
func MetadataMalformed(kind string) {
	metadataMalformed.WithLabelValues(norm(kind)).Inc()
}

// AssetRequest counts an asset request by outcome
func AssetRequest(outcome string) {
	assetRequests.WithLabelValues(norm(outcome)).Inc()
}
