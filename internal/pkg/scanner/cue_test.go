package scanner

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalCue(t *testing.T) {
	t.Run("Success shows remaining visits", func(t *testing.T) {
		var buf bytes.Buffer
		left := 3
		NewTerminalCue(&buf).Success(&Result{RemainingVisits: &left})
		assert.Contains(t, buf.String(), "WELCOME")
		assert.Contains(t, buf.String(), "remaining visits: 3")
	})

	t.Run("Unlimited membership", func(t *testing.T) {
		var buf bytes.Buffer
		NewTerminalCue(&buf).Success(&Result{})
		assert.Contains(t, buf.String(), "unlimited")
	})

	t.Run("Failure reasons", func(t *testing.T) {
		var buf bytes.Buffer
		cue := NewTerminalCue(&buf)
		cue.Failure(&Result{Code: 20003, Reason: "quota_exhausted"}, nil)
		cue.Failure(nil, errors.New("timeout"))

		out := buf.String()
		assert.Contains(t, out, "no visits left")
		assert.Contains(t, out, "network error: timeout")
		assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte(bell)))
	})
}
