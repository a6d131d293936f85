package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mailassist",
	Name:      "generations_total",
	Help:      "Text generation calls by kind and outcome.",
}, []string{"kind", "outcome"})
