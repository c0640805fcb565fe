package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with a context that carries
// them. Empty values are omitted.
type LogFields struct {
	JobID     string
	Repo      string
	PRNumber  int
	MessageID string // queue message id
	Component string // e.g. "prlens.jobs.worker"
}

// WithLogFields merges fields into ctx, newer non-empty values winning.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields carried by ctx.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.JobID != "" {
		result.JobID = new.JobID
	}
	if new.Repo != "" {
		result.Repo = new.Repo
	}
	if new.PRNumber != 0 {
		result.PRNumber = new.PRNumber
	}
	if new.MessageID != "" {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Truncate shortens s to maxLen bytes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
