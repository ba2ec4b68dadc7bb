package backend

import (
	"fmt"
	"time"
)

// UnavailableError 表示后端二进制不存在或无法启动。
type UnavailableError struct {
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: %s: %v", e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ExecutionError 表示子进程以非零状态退出，携带捕获到的 stderr。
type ExecutionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("backend exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("backend exited with code %d: %s", e.ExitCode, e.Stderr)
}

// TimeoutError 表示子进程超过墙钟预算被强制终止。
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend timed out after %s", e.Limit)
}
