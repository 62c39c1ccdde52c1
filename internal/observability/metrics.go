// Package observability holds Prometheus metric vectors for the application.
// HTTP request metrics are handled by fiberprometheus; the vectors here cover
// the infrastructure the request path leans on.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MailDispatchTotal counts outbound mail attempts by outcome.
	MailDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_mail_dispatch_total",
		Help: "Total number of outbound emails by outcome",
	}, []string{"outcome"})

	// ResetTokensIssued counts password reset tokens handed out.
	ResetTokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_reset_tokens_issued_total",
		Help: "Total number of password reset tokens issued",
	})

	// PostPublishToggles counts publish/hide transitions on posts.
	PostPublishToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_post_publish_toggles_total",
		Help: "Total number of post publication toggles by resulting state",
	}, []string{"state"})
)
