// Package monitoring provides alerting capabilities for the brand analysis backend
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypeJobFailureRate AlertType = "job_failure_rate"
	AlertTypeRateLimitSurge AlertType = "rate_limit_surge"
	AlertTypeStageTimeout   AlertType = "stage_timeout"
)

// Alert represents an alert
type Alert struct {
	ID          string                 `json:"id"`
	Type        AlertType              `json:"type"`
	Severity    AlertSeverity          `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Labels      map[string]string      `json:"labels"`
	Annotations map[string]interface{} `json:"annotations"`
	Resolved    bool                   `json:"resolved"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
}

// AlertRule defines a rule for generating alerts
type AlertRule struct {
	Name        string
	Type        AlertType
	Severity    AlertSeverity
	Condition   func() bool
	Title       string
	Description string
	Labels      map[string]string
	Enabled     bool
}

// Notifier interface for sending alert notifications
type Notifier interface {
	Send(alert *Alert) error
	Name() string
}

// LogNotifier sends alerts to the log
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Send(alert *Alert) error {
	level := logrus.InfoLevel
	switch alert.Severity {
	case SeverityHigh:
		level = logrus.WarnLevel
	case SeverityCritical:
		level = logrus.ErrorLevel
	}

	n.logger.WithFields(logrus.Fields{
		"alert_id":    alert.ID,
		"alert_type":  alert.Type,
		"severity":    alert.Severity,
		"labels":      alert.Labels,
		"annotations": alert.Annotations,
	}).Log(level, fmt.Sprintf("ALERT: %s - %s", alert.Title, alert.Description))

	return nil
}

// AlertManager evaluates alert rules and notifies on transitions
type AlertManager struct {
	alerts    map[AlertType]*Alert
	mutex     sync.RWMutex
	logger    *logrus.Logger
	rules     []AlertRule
	notifiers []Notifier
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewAlertManager creates an alert manager with the given rules. Call Start
// to begin periodic evaluation.
func NewAlertManager(logger *logrus.Logger, interval time.Duration, rules ...AlertRule) *AlertManager {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = time.Minute
	}

	return &AlertManager{
		alerts:    make(map[AlertType]*Alert),
		logger:    logger,
		rules:     rules,
		notifiers: []Notifier{NewLogNotifier(logger)},
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// FailureRatioCondition fires when the share of failed jobs since the last
// evaluation exceeds threshold over at least minJobs jobs.
func FailureRatioCondition(threshold float64, minJobs int64) func() bool {
	var lastCompleted, lastFailed int64
	return func() bool {
		completed, failed := JobCounts()
		deltaCompleted := completed - lastCompleted
		deltaFailed := failed - lastFailed
		lastCompleted, lastFailed = completed, failed

		total := deltaCompleted + deltaFailed
		if total < minJobs || total == 0 {
			return false
		}
		return float64(deltaFailed)/float64(total) > threshold
	}
}

// RejectionSurgeCondition fires when more than limit requests were rejected
// by the rate limiter since the last evaluation.
func RejectionSurgeCondition(limit int64) func() bool {
	var last int64
	return func() bool {
		current := RateLimitRejections()
		delta := current - last
		last = current
		return delta > limit
	}
}

// DefaultAlertRules returns the alert rules for the analysis service
func DefaultAlertRules() []AlertRule {
	labels := map[string]string{"service": "brand-analysis-backend"}
	return []AlertRule{
		{
			Name:        "High Job Failure Rate",
			Type:        AlertTypeJobFailureRate,
			Severity:    SeverityHigh,
			Condition:   FailureRatioCondition(0.5, 4),
			Title:       "High analysis job failure rate detected",
			Description: "More than half of recent analysis jobs failed",
			Labels:      labels,
			Enabled:     true,
		},
		{
			Name:        "Rate Limit Surge",
			Type:        AlertTypeRateLimitSurge,
			Severity:    SeverityMedium,
			Condition:   RejectionSurgeCondition(100),
			Title:       "Rate limiter rejecting many requests",
			Description: "More than 100 requests were rejected since the last evaluation",
			Labels:      labels,
			Enabled:     true,
		},
	}
}

// Start runs the evaluation loop until Stop is called
func (am *AlertManager) Start() {
	go func() {
		ticker := time.NewTicker(am.interval)
		defer ticker.Stop()

		for {
			select {
			case <-am.ctx.Done():
				return
			case <-ticker.C:
				am.Evaluate()
			}
		}
	}()
}

// Evaluate checks every enabled rule once. A firing rule raises an alert
// unless one of the same type is active; a quiet rule resolves it.
func (am *AlertManager) Evaluate() {
	am.mutex.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mutex.RUnlock()

	for _, rule := range rules {
		if !rule.Enabled || rule.Condition == nil {
			continue
		}
		if rule.Condition() {
			am.triggerAlert(rule)
		} else {
			am.resolveType(rule.Type)
		}
	}
}

func (am *AlertManager) triggerAlert(rule AlertRule) {
	am.mutex.Lock()
	if existing, exists := am.alerts[rule.Type]; exists && !existing.Resolved {
		am.mutex.Unlock()
		return
	}
	alert := &Alert{
		ID:          fmt.Sprintf("%s-%d", rule.Type, time.Now().Unix()),
		Type:        rule.Type,
		Severity:    rule.Severity,
		Title:       rule.Title,
		Description: rule.Description,
		Timestamp:   time.Now(),
		Labels:      rule.Labels,
		Annotations: make(map[string]interface{}),
	}
	am.alerts[rule.Type] = alert
	am.mutex.Unlock()

	am.sendNotifications(alert)
}

func (am *AlertManager) resolveType(alertType AlertType) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	alert, exists := am.alerts[alertType]
	if !exists || alert.Resolved {
		return
	}
	now := time.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now

	am.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"type":     alert.Type,
	}).Info("Alert resolved")
}

// TriggerManualAlert raises an alert outside of rule evaluation
func (am *AlertManager) TriggerManualAlert(alertType AlertType, severity AlertSeverity, title, description string, labels map[string]string) {
	alert := &Alert{
		ID:          fmt.Sprintf("%s-%d", alertType, time.Now().UnixNano()),
		Type:        alertType,
		Severity:    severity,
		Title:       title,
		Description: description,
		Timestamp:   time.Now(),
		Labels:      labels,
		Annotations: make(map[string]interface{}),
	}

	am.mutex.Lock()
	am.alerts[alertType] = alert
	am.mutex.Unlock()

	am.sendNotifications(alert)
}

func (am *AlertManager) sendNotifications(alert *Alert) {
	am.mutex.RLock()
	notifiers := append([]Notifier(nil), am.notifiers...)
	am.mutex.RUnlock()

	for _, notifier := range notifiers {
		if err := notifier.Send(alert); err != nil {
			am.logger.WithError(err).WithField("notifier", notifier.Name()).Error("Failed to send alert notification")
		}
	}
}

// GetActiveAlerts returns all active (unresolved) alerts
func (am *AlertManager) GetActiveAlerts() []*Alert {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var activeAlerts []*Alert
	for _, alert := range am.alerts {
		if !alert.Resolved {
			activeAlerts = append(activeAlerts, alert)
		}
	}

	return activeAlerts
}

// AddNotifier adds a new notifier
func (am *AlertManager) AddNotifier(notifier Notifier) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.notifiers = append(am.notifiers, notifier)
}

// Stop stops the alert manager
func (am *AlertManager) Stop() {
	am.cancel()
}
