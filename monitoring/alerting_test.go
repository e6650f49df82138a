package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*Alert
	err    error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(alert *Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestAlertManagerFiresOncePerActiveAlert(t *testing.T) {
	firing := true
	rule := AlertRule{
		Name:      "toggle",
		Type:      AlertTypeJobFailureRate,
		Severity:  SeverityHigh,
		Condition: func() bool { return firing },
		Title:     "failing",
		Enabled:   true,
	}
	am := NewAlertManager(quietLogger(), time.Hour, rule)
	notifier := &recordingNotifier{}
	am.AddNotifier(notifier)

	am.Evaluate()
	am.Evaluate()
	assert.Equal(t, 1, notifier.count(), "an active alert is not re-sent")

	active := am.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertTypeJobFailureRate, active[0].Type)
	assert.Equal(t, "failing", active[0].Title)

	firing = false
	am.Evaluate()
	assert.Empty(t, am.GetActiveAlerts())

	firing = true
	am.Evaluate()
	assert.Equal(t, 2, notifier.count(), "a resolved alert fires again")
}

func TestAlertManagerSkipsDisabledRules(t *testing.T) {
	called := false
	am := NewAlertManager(quietLogger(), 0, AlertRule{
		Type:      AlertTypeRateLimitSurge,
		Condition: func() bool { called = true; return true },
	})
	am.Evaluate()

	assert.False(t, called)
	assert.Empty(t, am.GetActiveAlerts())
	assert.Equal(t, time.Minute, am.interval)
}

func TestTriggerManualAlert(t *testing.T) {
	am := NewAlertManager(quietLogger(), time.Hour)
	failing := &recordingNotifier{err: errors.New("webhook down")}
	ok := &recordingNotifier{}
	am.AddNotifier(failing)
	am.AddNotifier(ok)

	am.TriggerManualAlert(AlertTypeStageTimeout, SeverityCritical, "Stage timed out",
		"discovery exceeded 2m0s", map[string]string{"stage": "discovery"})

	assert.Equal(t, 1, ok.count(), "a failing notifier does not block the rest")
	active := am.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, SeverityCritical, active[0].Severity)
	assert.Equal(t, "discovery", active[0].Labels["stage"])
}

func TestFailureRatioCondition(t *testing.T) {
	cond := FailureRatioCondition(0.5, 4)
	cond() // prime with whatever other tests recorded

	RecordJob("failed", 1)
	RecordJob("failed", 1)
	RecordJob("failed", 1)
	assert.False(t, cond(), "below the minimum job count")

	for i := 0; i < 3; i++ {
		RecordJob("failed", 1)
	}
	RecordJob("completed", 1)
	assert.True(t, cond())

	RecordJob("completed", 1)
	RecordJob("completed", 1)
	RecordJob("completed", 1)
	RecordJob("failed", 1)
	assert.False(t, cond())
}

func TestRejectionSurgeCondition(t *testing.T) {
	cond := RejectionSurgeCondition(2)
	cond()

	RecordRateLimitRejection("/api/analyses")
	RecordRateLimitRejection("/api/analyses")
	assert.False(t, cond())

	for i := 0; i < 3; i++ {
		RecordRateLimitRejection("/api/analyses")
	}
	assert.True(t, cond())
	assert.False(t, cond())
}

func TestDefaultAlertRules(t *testing.T) {
	rules := DefaultAlertRules()
	require.Len(t, rules, 2)
	for _, rule := range rules {
		assert.True(t, rule.Enabled)
		assert.NotNil(t, rule.Condition)
		assert.Equal(t, "brand-analysis-backend", rule.Labels["service"])
	}
}
