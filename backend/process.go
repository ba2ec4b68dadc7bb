package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const (
	// killGrace 取消/超时后等待子进程退出并回收的宽限时间。
	killGrace = 3 * time.Second
	// readChunkSize 每次从子进程 stdout 读取的块大小。
	readChunkSize = 4 << 10
	// eventPipeCap 规范事件管道容量，消费方不取时生产方会阻塞（背压）。
	eventPipeCap = 64
	// stderrLimit stderr 捕获上限，避免异常后端刷爆内存。
	stderrLimit = 256 << 10
)

type processConfig struct {
	path    string
	args    []string
	dir     string
	timeout time.Duration
}

// runningProcess 表示一次子进程调用：命令、stdout 管道与捕获的 stderr。
// 由单个请求独占，所有退出路径都必须经过 wait 回收。
type runningProcess struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *boundedBuffer
	ctx     context.Context
	timeout time.Duration
}

// startProcess 解析二进制路径并启动子进程。返回的 cancel 在所有退出
// 路径上都必须调用：它会终止子进程（SIGKILL），wait 随后完成回收。
func startProcess(ctx context.Context, cfg processConfig) (*runningProcess, context.CancelFunc, error) {
	resolved, err := exec.LookPath(cfg.path)
	if err != nil {
		return nil, nil, &UnavailableError{Path: cfg.path, Err: err}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(runCtx, resolved, cfg.args...)
	cmd.Dir = cfg.dir
	cmd.WaitDelay = killGrace

	stderr := &boundedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, &UnavailableError{Path: resolved, Err: err}
	}

	return &runningProcess{
		cmd:     cmd,
		stdout:  stdout,
		stderr:  stderr,
		ctx:     runCtx,
		timeout: cfg.timeout,
	}, cancel, nil
}

// wait 等待子进程退出并把退出状态映射为类型化错误。
func (p *runningProcess) wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}

	if errors.Is(p.ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Limit: p.timeout}
	}
	if p.ctx.Err() != nil {
		// 调用方取消，进程已被终止
		return p.ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecutionError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(p.stderr.String()),
		}
	}
	return err
}

// stderrText 返回捕获到的 stderr 文本。
func (p *runningProcess) stderrText() string {
	return p.stderr.String()
}

// streamEvents 启动子进程并把 stdout 经行重组后交由 mapLine 归一化，
// 以惰性事件流的形式返回。事件顺序与底层输出一致；消费方关闭 reader
// 或取消 ctx 都会终止子进程。非零退出以单个 Error 事件收尾，正常退出
// 以单个 Completion 事件收尾（用量取自行内报告的最新值）。
//
// reader 被关闭只在下一次 Send 时才能观察到，子进程在两次输出之间
// 不会因此退出；需要立即终止时由调用方取消 ctx。
func streamEvents(ctx context.Context, cfg processConfig, mapLine func(line string) *Event) (*schema.StreamReader[*Event], error) {
	proc, cancel, err := startProcess(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*Event](eventPipeCap)
	go func() {
		defer sw.Close()
		defer cancel()

		var buf lineBuffer
		var usage *Usage
		chunk := make([]byte, readChunkSize)
		terminal := false

		// Completion 事件被暂存以保证它只出现一次且一定在序列末尾；
		// Error 事件立即终止序列（之后不会再有任何事件）。
		forward := func(ev *Event) (stop bool) {
			if ev == nil {
				return false
			}
			switch ev.Kind {
			case EventCompletion:
				if ev.Usage != nil {
					usage = ev.Usage
				}
				return false
			case EventError:
				sw.Send(ev, nil)
				return true
			}
			// Send 返回 true 表示消费方已关闭 reader（放弃消费）
			return sw.Send(ev, nil)
		}

	readLoop:
		for {
			n, readErr := proc.stdout.Read(chunk)
			if n > 0 {
				for _, line := range buf.Feed(chunk[:n]) {
					if forward(mapLine(line)) {
						terminal = true
						break readLoop
					}
				}
			}
			if readErr != nil {
				break
			}
		}
		if !terminal {
			for _, line := range buf.Flush() {
				if forward(mapLine(line)) {
					terminal = true
					break
				}
			}
		}

		if terminal {
			// 序列已终结（消费方放弃或后端报错），确保子进程被终止后回收
			cancel()
		}
		waitErr := proc.wait()
		if terminal {
			return
		}
		if waitErr != nil {
			sw.Send(&Event{Kind: EventError, Err: waitErr}, nil)
			return
		}
		sw.Send(&Event{Kind: EventCompletion, Usage: usage}, nil)
	}()

	return sr, nil
}

// boundedBuffer 是带上限的写缓冲，超出部分丢弃。
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len() >= b.limit {
		return len(p), nil
	}
	if remain := b.limit - b.buf.Len(); len(p) > remain {
		b.buf.Write(p[:remain])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *boundedBuffer) String() string { return b.buf.String() }
