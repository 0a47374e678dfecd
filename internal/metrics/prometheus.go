package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replyreminder"

// PrometheusRecorder exports counters on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	usersCreated        prometheus.Counter
	accountsLinked      prometheus.Counter
	remindersCreated    prometheus.Counter
	remindersMarkedSent prometheus.Counter
	webhookEvents       *prometheus.CounterVec
	webhookRejected     *prometheus.CounterVec
}

// NewPrometheus builds a recorder with Go runtime and process collectors registered.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Persons registered through /user/.",
		}),
		accountsLinked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_linked_total",
			Help:      "Successful account links.",
		}),
		remindersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "Reminders stored.",
		}),
		remindersMarkedSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_marked_sent_total",
			Help:      "Reminder acknowledgements received from the dispatcher.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound messaging events by kind.",
		}, []string{"kind"}),
		webhookRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_rejected_total",
			Help:      "Webhook calls rejected by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.usersCreated,
		p.accountsLinked,
		p.remindersCreated,
		p.remindersMarkedSent,
		p.webhookEvents,
		p.webhookRejected,
	)

	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) IncUserCreated()        { p.usersCreated.Inc() }
func (p *PrometheusRecorder) IncAccountLinked()      { p.accountsLinked.Inc() }
func (p *PrometheusRecorder) IncReminderCreated()    { p.remindersCreated.Inc() }
func (p *PrometheusRecorder) IncReminderMarkedSent() { p.remindersMarkedSent.Inc() }

func (p *PrometheusRecorder) IncWebhookEvent(kind string) {
	p.webhookEvents.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncWebhookRejected(reason string) {
	p.webhookRejected.WithLabelValues(reason).Inc()
}
