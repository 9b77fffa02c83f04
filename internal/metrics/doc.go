// Package metrics records remote build metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never need nil checks at call sites:
//
//	client := remote.NewClient(tr, remote.WithRecorder(metrics.NoopRecorder{}))
//
// PrometheusRecorder registers its collectors on a caller supplied registry.
// One-shot CLI runs export the registry with WriteTextfile for the node
// exporter textfile collector; the long running watch command can serve it
// over HTTP with Handler instead.
package metrics
