// Package metrics defines and registers all custom Prometheus metrics for the
// chat gateway. It is the single source of truth for metric names, labels,
// and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatgw"

// MessagesTotal counts chat submissions by tier and outcome.
// Labels:
//   - tier: "guest" or "authenticated"
//   - outcome: "ok", "validation", "rate_limited", "auth_expired", "upstream_error"
var MessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Total number of chat submissions, by tier and outcome.",
	},
	[]string{"tier", "outcome"},
)

// RateLimitedTotal counts quota denials.
// Label:
//   - tier: the tier whose window was exhausted
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of submissions denied by the quota tracker.",
	},
	[]string{"tier"},
)

// AuthAttemptsTotal counts identity operations by result.
// Labels:
//   - operation: "login", "signup", "confirm", "forgot_password", "confirm_forgot_password", "logout"
//   - result: "ok" or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of identity operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// SubmitDuration measures one chat exchange end-to-end, including the
// upstream chat API call.
// Label:
//   - outcome: same values as MessagesTotal
var SubmitDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submit_duration_seconds",
		Help:      "Duration of a chat submission from validation to reply.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// ActiveContexts tracks the number of live session contexts.
var ActiveContexts = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_contexts",
		Help:      "Current number of live browser session contexts.",
	},
)
