// Package metrics provides build metrics for contentbuild.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless a Prometheus recorder is
// wired in (the watch command does this when watch.metrics_addr is set):
//
//	reg := prometheus.NewRegistry()
//	exec := build.NewExecutor(cfg).WithRecorder(metrics.NewPrometheusRecorder(reg))
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
