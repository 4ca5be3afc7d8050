//go:build !windows

package process

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/usbprep/internal/heap"
)

// =============================================================================
// Helpers
// =============================================================================

func shInvocation(script string) Invocation {
	return Invocation{
		Step:            "test",
		Path:            "/bin/sh",
		Args:            []string{"sh", "-c", script},
		GracePeriod:     50 * time.Millisecond,
		Timeout:         5 * time.Second,
		DefaultExitCode: DefaultExitCode,
	}
}

// trackingPipe records every file it hands out so tests can check that
// the runner closed all of them.
type trackingPipe struct {
	mu     sync.Mutex
	files  []*os.File
	failAt int // 1-based call that fails; 0 never fails
	calls  int
}

func (p *trackingPipe) pipe() (*os.File, *os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failAt != 0 && p.calls == p.failAt {
		return nil, nil, errors.New("pipe: too many open files")
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	p.files = append(p.files, r, w)
	return r, w, nil
}

func (p *trackingPipe) assertAllClosed(t *testing.T) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, f := range p.files {
		if _, err := f.Stat(); !errors.Is(err, os.ErrClosed) {
			t.Errorf("file %d (%s) still open: %v", i, f.Name(), err)
		}
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []Outcome
	errs     []error
}

func (o *recordingObserver) InvocationStarted(step string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, step)
}

func (o *recordingObserver) InvocationFinished(out Outcome, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, out)
	o.errs = append(o.errs, err)
}

func newTestRunner(pipe *trackingPipe, observers ...Observer) *Runner {
	r := New(Config{Observers: observers})
	if pipe != nil {
		r.pipe = pipe.pipe
	}
	return r
}

// =============================================================================
// Run
// =============================================================================

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"success", 0},
		{"failure", 1},
		{"format_error", 4},
		{"high", 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe := &trackingPipe{}
			r := newTestRunner(pipe)

			out, err := r.Run(context.Background(), shInvocation("exit "+strconv.Itoa(tt.code)))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if out.Completion != CompletionExited {
				t.Errorf("Completion = %v, want exited", out.Completion)
			}
			if out.ExitCode != tt.code {
				t.Errorf("ExitCode = %d, want %d", out.ExitCode, tt.code)
			}
			if out.Success() != (tt.code == 0) {
				t.Errorf("Success() = %v", out.Success())
			}
			if out.RunID == "" {
				t.Error("RunID is empty")
			}
			pipe.assertAllClosed(t)
		})
	}
}

func TestRun_ScriptedInput(t *testing.T) {
	// Sleep past the grace period so the input arrives as an answer to a
	// waiting prompt, the way format.com asks for confirmation.
	inv := shInvocation(`sleep 0.2; read a; read b; echo "answers $a $b"; [ "$a" = Y ] && [ "$b" = N ]`)
	inv.Input = []byte("Y\nN\n")

	out, err := newTestRunner(nil).Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.InputErr != nil {
		t.Errorf("InputErr = %v", out.InputErr)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 (child did not read both answers)", out.ExitCode)
	}

	found := false
	for _, line := range out.Output {
		if line == "answers Y N" {
			found = true
		}
	}
	if !found {
		t.Errorf("Output = %q, want line %q", out.Output, "answers Y N")
	}
}

func TestRun_NoInputAfterEarlyExit(t *testing.T) {
	inv := shInvocation("exit 0")
	inv.GracePeriod = 2 * time.Second
	inv.Input = []byte("Y\n")

	start := time.Now()
	out, err := newTestRunner(nil).Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.InputErr != nil {
		t.Errorf("InputErr = %v, want nil", out.InputErr)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %v, should return as soon as the child exits", elapsed)
	}
}

func TestRun_TimeoutKills(t *testing.T) {
	pipe := &trackingPipe{}
	inv := shInvocation("sleep 30")
	inv.GracePeriod = 20 * time.Millisecond
	inv.Timeout = 100 * time.Millisecond
	inv.DefaultExitCode = 42

	start := time.Now()
	out, err := newTestRunner(pipe).Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Completion != CompletionKilled {
		t.Errorf("Completion = %v, want killed", out.Completion)
	}
	if out.ExitCode != 42 {
		t.Errorf("ExitCode = %d, want 42", out.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, child was not killed", elapsed)
	}
	pipe.assertAllClosed(t)
}

func TestRun_TimeoutKillsWithoutDrainHang(t *testing.T) {
	// The background sleep inherits stdout; killing the process group
	// must take it down too or the output reader never sees EOF.
	inv := shInvocation("sleep 30 & wait")
	inv.GracePeriod = 20 * time.Millisecond
	inv.Timeout = 100 * time.Millisecond

	start := time.Now()
	out, err := newTestRunner(nil).Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Completion != CompletionKilled {
		t.Errorf("Completion = %v, want killed", out.Completion)
	}
	if elapsed := time.Since(start); elapsed > drainTimeout+2*time.Second {
		t.Errorf("Run took %v", elapsed)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	inv := shInvocation("sleep 30")
	out, err := newTestRunner(nil).Run(ctx, inv)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if out.Completion != CompletionKilled {
		t.Errorf("Completion = %v, want killed", out.Completion)
	}
	if out.ExitCode != DefaultExitCode {
		t.Errorf("ExitCode = %d, want %d", out.ExitCode, DefaultExitCode)
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	pipe := &trackingPipe{}
	inv := Invocation{
		Step:            "format",
		Path:            "/nonexistent/usbprep-test-tool",
		Input:           []byte("Y\n"),
		GracePeriod:     5 * time.Second,
		Timeout:         5 * time.Second,
		DefaultExitCode: 7,
	}

	start := time.Now()
	out, err := newTestRunner(pipe).Run(context.Background(), inv)
	if err == nil {
		t.Fatal("Run() error = nil, want spawn error")
	}
	if out.Completion != CompletionSpawnFailed {
		t.Errorf("Completion = %v, want spawn_failed", out.Completion)
	}
	if out.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want default 7", out.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %v, should not wait after spawn failure", elapsed)
	}
	if len(pipe.files) != 6 {
		t.Errorf("pipe files = %d, want 6", len(pipe.files))
	}
	pipe.assertAllClosed(t)
}

func TestRun_PipeFailure(t *testing.T) {
	for failAt := 1; failAt <= 3; failAt++ {
		t.Run("pipe_"+strconv.Itoa(failAt), func(t *testing.T) {
			pipe := &trackingPipe{failAt: failAt}
			out, err := newTestRunner(pipe).Run(context.Background(), shInvocation("exit 0"))
			if err == nil {
				t.Fatal("Run() error = nil, want pipe error")
			}
			if out.Completion != CompletionSpawnFailed {
				t.Errorf("Completion = %v, want spawn_failed", out.Completion)
			}
			if got, want := len(pipe.files), 2*(failAt-1); got != want {
				t.Errorf("pipe files = %d, want %d", got, want)
			}
			pipe.assertAllClosed(t)
		})
	}
}

func TestRun_InputWriteFailure(t *testing.T) {
	// The child closes its stdin, so writing the answers fails. The run
	// still waits for the child and reports its real exit code.
	inv := shInvocation("exec 0<&-; sleep 0.3; exit 5")
	inv.Input = []byte("Y\nN\n")

	out, err := newTestRunner(nil).Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.InputErr == nil {
		t.Error("InputErr = nil, want write error")
	}
	if out.Completion != CompletionExited {
		t.Errorf("Completion = %v, want exited", out.Completion)
	}
	if out.ExitCode != 5 {
		t.Errorf("ExitCode = %d, want 5", out.ExitCode)
	}
}

func TestRun_TimeoutWithUnreadInput(t *testing.T) {
	// The child never reads stdin and the answers overflow the pipe
	// buffer. The write must not hold off the kill.
	pipe := &trackingPipe{}
	inv := shInvocation("sleep 30")
	inv.GracePeriod = 20 * time.Millisecond
	inv.Timeout = 200 * time.Millisecond
	inv.Input = []byte(strings.Repeat("Y\n", 128*1024))

	type result struct {
		out Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := newTestRunner(pipe).Run(context.Background(), inv)
		done <- result{out, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-time.After(drainTimeout + 3*time.Second):
		t.Fatal("Run still blocked long after the timeout")
	}
	if res.err != nil {
		t.Fatalf("Run() error = %v", res.err)
	}
	if res.out.Completion != CompletionKilled {
		t.Errorf("Completion = %v, want killed", res.out.Completion)
	}
	if res.out.ExitCode != DefaultExitCode {
		t.Errorf("ExitCode = %d, want %d", res.out.ExitCode, DefaultExitCode)
	}
	if res.out.InputErr == nil {
		t.Error("InputErr = nil, want the undelivered input reported")
	}
	pipe.assertAllClosed(t)
}

func TestRun_InputBufferFromHeap(t *testing.T) {
	h := heap.New(heap.Config{})
	r := New(Config{Heap: h})

	inv := shInvocation("read a; read b; echo \"$a $b\"")
	inv.GracePeriod = 50 * time.Millisecond
	inv.Input = []byte("Y\nN\n")

	out, err := r.Run(context.Background(), inv)
	if err != nil || out.InputErr != nil {
		t.Fatalf("Run() error = %v, InputErr = %v", err, out.InputErr)
	}
	if h.LiveBytes() != 0 {
		t.Errorf("LiveBytes = %d after Run, want 0", h.LiveBytes())
	}
}

func TestRun_InputHeapExhausted(t *testing.T) {
	r := New(Config{Heap: heap.New(heap.Config{Limit: 1})})

	inv := shInvocation("sleep 0.3; exit 3")
	inv.GracePeriod = 50 * time.Millisecond
	inv.Input = []byte("Y\nN\n")

	out, err := r.Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !errors.Is(out.InputErr, heap.ErrOutOfMemory) {
		t.Errorf("InputErr = %v, want ErrOutOfMemory", out.InputErr)
	}
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", out.ExitCode)
	}
}

func TestRun_CapturesStderr(t *testing.T) {
	out, err := newTestRunner(nil).Run(context.Background(),
		shInvocation("echo 'Invalid media or Track 0 bad' >&2; exit 1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Output) != 1 || !strings.Contains(out.Output[0], "Track 0 bad") {
		t.Errorf("Output = %q", out.Output)
	}
}

func TestRun_Observers(t *testing.T) {
	obs := &recordingObserver{}
	r := newTestRunner(nil, obs)

	if _, err := r.Run(context.Background(), shInvocation("exit 2")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	_, spawnErr := r.Run(context.Background(), Invocation{Step: "missing", Path: "/nonexistent/tool"})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.started) != 2 || obs.started[0] != "test" || obs.started[1] != "missing" {
		t.Errorf("started = %v", obs.started)
	}
	if len(obs.finished) != 2 {
		t.Fatalf("finished = %d, want 2", len(obs.finished))
	}
	if obs.finished[0].ExitCode != 2 || obs.errs[0] != nil {
		t.Errorf("first finished = %v, %v", obs.finished[0], obs.errs[0])
	}
	if obs.finished[1].Completion != CompletionSpawnFailed || obs.errs[1] != spawnErr {
		t.Errorf("second finished = %v, %v", obs.finished[1], obs.errs[1])
	}
	if obs.finished[0].Duration <= 0 {
		t.Error("Duration not set before observers ran")
	}
}

func TestRun_Concurrent(t *testing.T) {
	r := newTestRunner(nil)
	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Run(context.Background(), shInvocation("exit "+strconv.Itoa(i)))
			if err != nil {
				t.Errorf("Run(%d) error = %v", i, err)
			}
			codes[i] = out.ExitCode
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != i {
			t.Errorf("codes[%d] = %d", i, code)
		}
	}
}

// =============================================================================
// Invocation / Outcome
// =============================================================================

func TestInvocation_WithDefaults(t *testing.T) {
	inv := Invocation{Path: "/bin/true"}.withDefaults()
	if inv.GracePeriod != DefaultGracePeriod {
		t.Errorf("GracePeriod = %v", inv.GracePeriod)
	}
	if inv.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v", inv.Timeout)
	}
	if inv.Step != "command" {
		t.Errorf("Step = %q", inv.Step)
	}
	if got := inv.argv(); len(got) != 1 || got[0] != "/bin/true" {
		t.Errorf("argv() = %v", got)
	}
}

func TestInvocation_String(t *testing.T) {
	tests := []struct {
		inv  Invocation
		want string
	}{
		{Invocation{Path: "/bin/sh", Args: []string{"sh", "-c", "exit 0"}}, "sh -c exit 0"},
		{Invocation{Path: `C:\Windows\system32\cmd.exe`, CommandLine: `/C format E: /Q`}, `C:\Windows\system32\cmd.exe /C format E: /Q`},
	}
	for _, tt := range tests {
		if got := tt.inv.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCompletion_String(t *testing.T) {
	tests := []struct {
		c    Completion
		want string
	}{
		{CompletionExited, "exited"},
		{CompletionKilled, "killed"},
		{CompletionSpawnFailed, "spawn_failed"},
		{Completion(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Completion(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	out := Outcome{Step: "format", Completion: CompletionKilled, ExitCode: 99, Duration: 1500 * time.Millisecond}
	want := "format: killed exit_code=99 duration=1.5s"
	if got := out.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestExitCode(t *testing.T) {
	if code, err := exitCode(nil); code != 0 || err != nil {
		t.Errorf("exitCode(nil) = %d, %v", code, err)
	}
	other := errors.New("wait: no child processes")
	if _, err := exitCode(other); err != other {
		t.Errorf("exitCode(other) err = %v, want passthrough", err)
	}
}
