package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for chat sessions. It satisfies
// chatbot.Recorder.
type ChatMetrics struct {
	sessionsOpened *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	commands       *prometheus.CounterVec
	replyDelay     prometheus.Histogram
	activeSessions *prometheus.GaugeVec
	frames         *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicchat",
			Subsystem: "chat",
			Name:      "sessions_opened_total",
			Help:      "Widget open transitions, split by whether the session was greeted",
		}, []string{"first"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicchat",
			Subsystem: "chat",
			Name:      "submissions_total",
			Help:      "Submitted options by the stage that produced the reply",
		}, []string{"stage"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicchat",
			Subsystem: "chat",
			Name:      "commands_total",
			Help:      "Host commands issued by special options",
		}, []string{"kind"}),
		replyDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicchat",
			Subsystem: "chat",
			Name:      "reply_delay_seconds",
			Help:      "Time between a submission and its delayed bot reply",
			Buckets:   []float64{0.25, 0.5, 0.75, 1, 1.5, 2, 5},
		}),
		activeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "clinicchat",
			Subsystem: "chat",
			Name:      "active_sessions",
			Help:      "Live chat sessions by transport",
		}, []string{"transport"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicchat",
			Subsystem: "chat",
			Name:      "frames_total",
			Help:      "Webchat frames by direction and type",
		}, []string{"direction", "type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessionsOpened, m.resolutions, m.commands, m.replyDelay, m.activeSessions, m.frames)
	return m
}

func (m *ChatMetrics) ObserveSessionOpened(first bool) {
	if m == nil {
		return
	}
	label := "false"
	if first {
		label = "true"
	}
	m.sessionsOpened.WithLabelValues(label).Inc()
}

func (m *ChatMetrics) ObserveResolution(stage string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(stage).Inc()
}

func (m *ChatMetrics) ObserveCommand(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *ChatMetrics) ObserveReplyDelay(seconds float64) {
	if m == nil {
		return
	}
	m.replyDelay.Observe(seconds)
}

// SessionStarted and SessionEnded track live sessions per transport.
func (m *ChatMetrics) SessionStarted(transport string) {
	if m == nil {
		return
	}
	m.activeSessions.WithLabelValues(transport).Inc()
}

func (m *ChatMetrics) SessionEnded(transport string) {
	if m == nil {
		return
	}
	m.activeSessions.WithLabelValues(transport).Dec()
}

func (m *ChatMetrics) ObserveFrame(direction, frameType string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction, frameType).Inc()
}
