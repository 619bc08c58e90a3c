package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/downfa11-org/rollstore/util"
)

// StartMetricsServer serves the registered instruments on /metrics in
// a background goroutine, logging through util rather than
// fmt.Println so exporter startup shows up at the configured log level.
func StartMetricsServer(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		util.Info("metrics: Prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			util.Warn("metrics: exporter failed to start: %v", err)
		}
	}()
}
