package queue

import (
	"strconv"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    Task
		wantErr bool
	}{
		{
			name:   "full",
			values: map[string]any{"job_id": "j1", "attempt": "2", "credential": "tok", "trace_id": "abc"},
			want:   Task{JobID: "j1", Attempt: 2, Credential: "tok", TraceID: "abc"},
		},
		{
			name:   "attempt defaults to one",
			values: map[string]any{"job_id": "j2"},
			want:   Task{JobID: "j2", Attempt: 1},
		},
		{name: "missing job id", values: map[string]any{"attempt": "1"}, wantErr: true},
		{name: "empty job id", values: map[string]any{"job_id": ""}, wantErr: true},
		{name: "bad attempt", values: map[string]any{"job_id": "j3", "attempt": "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskValuesRoundTrip(t *testing.T) {
	task := Task{JobID: "job-7", Attempt: 3, TraceID: "0af7651916cd43dd8448eb211c80319c"}

	values := taskValues(task)
	assert.NotContains(t, values, "credential")

	// Redis returns every field as a string.
	wire := map[string]any{}
	for k, v := range values {
		wire[k] = fmtValue(v)
	}
	got, err := ParseMessage(redis.XMessage{ID: "2-0", Values: wire})
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func fmtValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	default:
		panic("unexpected value type")
	}
}
