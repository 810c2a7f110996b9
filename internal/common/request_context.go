// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestContext tracks the entire request lifecycle with timing and token usage.
// Steps are recorded from the request goroutine; log helpers are safe from any goroutine.
type RequestContext struct {
	RequestID        string
	UserID           string
	StartTime        time.Time
	Steps            []StepLog
	TotalTokens      TokenUsage
	CurrentStep      string
	CurrentStepStart time.Time

	mu     sync.Mutex
	logger *logrus.Entry
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration_ms"`
	Status    string    `json:"status"` // "success", "failed", "skipped"
	Error     string    `json:"error,omitempty"`
}

// TokenUsage tracks provider token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// InitLogging configures the global logrus formatter and level
func InitLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(userID string) *RequestContext {
	reqID := uuid.New().String()
	now := time.Now()

	rc := &RequestContext{
		RequestID: reqID,
		UserID:    userID,
		StartTime: now,
		Steps:     []StepLog{},
		logger: logrus.WithFields(logrus.Fields{
			"request_id": reqID,
			"user_id":    userID,
		}),
	}
	rc.logger.Info("🚀 new identification request")
	return rc
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()
	rc.entry().WithField("step", stepName).Debug("┌── step started")
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
	}

	fields := logrus.Fields{
		"step":        rc.CurrentStep,
		"status":      status,
		"duration_ms": duration,
	}
	if err != nil {
		stepLog.Error = err.Error()
		rc.entry().WithFields(fields).WithError(err).Warn("└── ❌ step failed")
	} else {
		rc.entry().WithFields(fields).Info("└── ✅ step done")
	}

	rc.mu.Lock()
	rc.Steps = append(rc.Steps, stepLog)
	rc.mu.Unlock()
	rc.CurrentStep = ""
}

// AddTokens accumulates provider token usage
func (rc *RequestContext) AddTokens(usage TokenUsage) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.TotalTokens.InputTokens += usage.InputTokens
	rc.TotalTokens.OutputTokens += usage.OutputTokens
	rc.TotalTokens.TotalTokens += usage.TotalTokens
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	rc.mu.Lock()
	stepBreakdown := make(map[string]int64, len(rc.Steps))
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}
	tokens := rc.TotalTokens
	steps := len(rc.Steps)
	rc.mu.Unlock()

	summary := map[string]interface{}{
		"request_id":        rc.RequestID,
		"total_duration_ms": totalDuration,
		"step_breakdown":    stepBreakdown,
		"total_steps":       steps,
		"token_usage":       tokens,
	}

	rc.entry().WithFields(logrus.Fields{
		"duration_ms":  totalDuration,
		"total_steps":  steps,
		"total_tokens": tokens.TotalTokens,
	}).Info("🎯 request finished")

	return summary
}

// LogInfo logs info-level message with request ID field
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	rc.entry().Info(fmt.Sprintf(format, args...))
}

// LogWarning logs warning-level message with request ID field
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	rc.entry().Warn(fmt.Sprintf(format, args...))
}

// LogError logs error-level message with request ID field
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	rc.entry().Error(fmt.Sprintf(format, args...))
}

func (rc *RequestContext) entry() *logrus.Entry {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.logger == nil {
		rc.logger = logrus.WithField("request_id", rc.RequestID)
	}
	return rc.logger
}
