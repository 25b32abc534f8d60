package scanner

import (
	"fmt"
	"io"
	"strconv"
	"sync"
)

const bell = "\a"

// TerminalCue 在终端上输出提示，成功响铃一次，失败响铃两次
type TerminalCue struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalCue(out io.Writer) *TerminalCue {
	return &TerminalCue{out: out}
}

func (t *TerminalCue) Success(res *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := "unlimited"
	if res.RemainingVisits != nil {
		remaining = strconv.Itoa(*res.RemainingVisits)
	}
	fmt.Fprintf(t.out, "%s\033[32mWELCOME\033[0m remaining visits: %s\n", bell, remaining)
}

func (t *TerminalCue) Failure(res *Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := "scan failed"
	switch {
	case err != nil:
		msg = "network error: " + err.Error()
	case res != nil && res.Reason != "":
		msg = failureText(res.Reason)
	case res != nil:
		msg = res.Message
	}
	fmt.Fprintf(t.out, "%s%s\033[31mDENIED\033[0m %s\n", bell, bell, msg)
}

func failureText(reason string) string {
	switch reason {
	case "invalid":
		return "code not recognised"
	case "expired":
		return "expired"
	case "already_consumed":
		return "code already used"
	case "frozen":
		return "membership is frozen"
	case "cancelled":
		return "membership is cancelled"
	case "quota_exhausted":
		return "no visits left"
	default:
		return reason
	}
}
