package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every package that logs about a match.
const (
	FieldAIProvider = "ai_provider"
	FieldAIModel    = "ai_model"
	FieldJobID      = "job_id"
	FieldProviderID = "provider_id"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, skipping blank keys
// and blank values so lines stay compact.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger. A nil logger becomes a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ForJob scopes logger to a job.
func ForJob(logger *zap.Logger, jobID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldJobID, Value: jobID})...)
}

// ForAssessment scopes logger to one AI assessment of a provider for a job.
func ForAssessment(logger *zap.Logger, aiProvider, model, jobID, providerID string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldAIProvider, Value: aiProvider},
		StringField{Key: FieldAIModel, Value: model},
		StringField{Key: FieldJobID, Value: jobID},
		StringField{Key: FieldProviderID, Value: providerID},
	)...)
}
