package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	VendorAPIToken     = "token"
	VendorAPIDashboard = "dashboard"
)

// NewVendorRequestsCounter counts outgoing requests by vendor api, status code
// and method.
func NewVendorRequestsCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meraki_connect",
		Name:      "vendor_requests_total",
		Help:      "Requests made to the vendor token endpoint and dashboard API.",
	}, []string{"api", "code", "method"})
}

// NewInstrumentedClient returns a client that counts its requests in counter,
// labelled with api. A zero timeout means no timeout.
func NewInstrumentedClient(timeout time.Duration, counter *prometheus.CounterVec, api string) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: promhttp.InstrumentRoundTripperCounter(
			counter.MustCurryWith(prometheus.Labels{"api": api}),
			http.DefaultTransport,
		),
	}
}
