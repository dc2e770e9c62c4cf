package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PrometheusMetricType is the exposition type of a metric family.
type PrometheusMetricType string

const (
	PrometheusCounter PrometheusMetricType = "counter"
	PrometheusGauge   PrometheusMetricType = "gauge"
)

// PrometheusMetric is a single sample: one family name, an optional
// label set, and a numeric value.
type PrometheusMetric struct {
	Name   string
	Type   PrometheusMetricType
	Help   string
	Labels map[string]string
	Value  interface{}
}

// MetricsCollectorInterface is what a collector must provide to be
// scraped by the exporter.
type MetricsCollectorInterface interface {
	GetName() string
	ExportPrometheusMetrics() []PrometheusMetric
}

// PrometheusExporter renders registered collectors in the Prometheus
// text exposition format. Samples of the same family are grouped under
// one HELP/TYPE header; families are emitted in name order so scrapes
// are diffable.
type PrometheusExporter struct {
	mu         sync.RWMutex
	namespace  string
	collectors []MetricsCollectorInterface
}

// NewPrometheusExporter creates an exporter. A non-empty namespace is
// prefixed onto every family name.
func NewPrometheusExporter(namespace string) *PrometheusExporter {
	return &PrometheusExporter{namespace: namespace}
}

// RegisterCollector adds a collector to the scrape set.
func (e *PrometheusExporter) RegisterCollector(collector MetricsCollectorInterface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collectors = append(e.collectors, collector)
}

// Export renders all collectors as exposition text.
func (e *PrometheusExporter) Export() string {
	e.mu.RLock()
	collectors := make([]MetricsCollectorInterface, len(e.collectors))
	copy(collectors, e.collectors)
	namespace := e.namespace
	e.mu.RUnlock()

	var samples []PrometheusMetric
	for _, collector := range collectors {
		samples = append(samples, collector.ExportPrometheusMetrics()...)
	}
	if namespace != "" {
		for i := range samples {
			samples[i].Name = namespace + "_" + samples[i].Name
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Name < samples[j].Name
	})

	var out strings.Builder
	family := ""
	for _, sample := range samples {
		if sample.Name != family {
			if family != "" {
				out.WriteString("\n")
			}
			family = sample.Name
			fmt.Fprintf(&out, "# HELP %s %s\n", family, sample.Help)
			fmt.Fprintf(&out, "# TYPE %s %s\n", family, sample.Type)
		}
		out.WriteString(sample.Name)
		out.WriteString(formatLabels(sample.Labels))
		fmt.Fprintf(&out, " %v\n", sample.Value)
	}
	return out.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// formatLabels renders {k1="v1",k2="v2"} with keys sorted and values
// escaped per the exposition format.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + `="` + labelEscaper.Replace(labels[key]) + `"`
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// LabeledMetric builds a gauge sample with the given label set.
func LabeledMetric(name string, value interface{}, help string, labels map[string]string) PrometheusMetric {
	return PrometheusMetric{
		Name:   name,
		Type:   PrometheusGauge,
		Help:   help,
		Labels: labels,
		Value:  value,
	}
}

// CreateToolMetric builds a gauge sample labeled by tool name.
func CreateToolMetric(tool string, metricName string, value interface{}, help string) PrometheusMetric {
	return LabeledMetric(metricName, value, help, map[string]string{"tool": tool})
}

// CreatePhaseMetric builds a gauge sample labeled by phase name.
func CreatePhaseMetric(phase string, metricName string, value interface{}, help string) PrometheusMetric {
	return LabeledMetric(metricName, value, help, map[string]string{"phase": phase})
}
