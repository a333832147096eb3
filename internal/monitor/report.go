package monitor

import (
	"fmt"
	"strings"
	"time"
)

// formatMetricValue renders a metric with a unit suffix derived from its
// name. Status metrics stay raw.
func formatMetricValue(m Metric) string {
	switch {
	case strings.HasSuffix(m.Name, "_percent"):
		return m.Value + "%"
	case strings.HasSuffix(m.Name, "_ms"):
		return m.Value + " ms"
	default:
		return m.Value
	}
}

// FormatReport renders a monitoring run as plain text: alerts first, then
// the recorded metrics.
func FormatReport(now time.Time, alerts []Alert, metrics []Metric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spondex monitoring report at %s\n\n", now.Format("2006-01-02 15:04 MST"))

	if len(alerts) > 0 {
		b.WriteString("Alerts:\n")
		for _, alert := range alerts {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", alert.Severity, alert.Name, alert.Message)
		}
	} else {
		b.WriteString("No alerts triggered.\n")
	}

	b.WriteString("\nRecent metrics:\n")
	for _, metric := range metrics {
		fmt.Fprintf(&b, "- %s = %s\n", metric.Name, formatMetricValue(metric))
	}
	return b.String()
}
