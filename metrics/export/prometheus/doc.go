// Package prometheus renders hubauth engine metrics in the Prometheus text
// exposition format.
//
// Counters are named hubauth_*_total; the single histogram is
// hubauth_validate_latency_seconds. Nothing is registered globally: mount
// [Exporter.Handler] where the scraper expects it.
package prometheus
