package user

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"orbital/kernel"
)

func newUserKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	k, err := kernel.New(kernel.Config{Mode: kernel.ModeCooperative, Log: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

// runProgram spawns prog under name and drives the cooperative engine
// until everything ready has completed.
func runProgram(t *testing.T, k *kernel.Kernel, name string, prog kernel.Program) kernel.ProcessID {
	t.Helper()
	pid, err := k.SpawnFunc(name, prog)
	if err != nil {
		t.Fatalf("SpawnFunc(%s): %v", name, err)
	}
	if _, err := k.RunReady(); err != nil {
		t.Fatalf("RunReady: %v", err)
	}
	return pid
}

func drainConsole(k *kernel.Kernel) string {
	var b strings.Builder
	for {
		msg, err := k.Console().Dequeue()
		if err != nil {
			return b.String()
		}
		if msg.ID == kernel.MsgConsoleWrite {
			b.Write(msg.Bytes())
		}
	}
}

func TestHello(t *testing.T) {
	k := newUserKernel(t)
	var herr error
	runProgram(t, k, "probe", func(env *kernel.Env) int64 {
		herr = Hello(env)
		return 0
	})
	if herr != nil {
		t.Fatalf("Hello: %v", herr)
	}
}

func TestPrintReachesConsole(t *testing.T) {
	k := newUserKernel(t)
	pid := runProgram(t, k, "printer", func(env *kernel.Env) int64 {
		n, err := Print(env, "hello console\n")
		if err != nil || n != len("hello console\n") {
			t.Errorf("Print: n=%d err=%v", n, err)
		}
		return 0
	})
	msg, err := k.Console().Dequeue()
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	if msg.Sender != uint32(pid) {
		t.Fatalf("sender: got %d, want %d", msg.Sender, pid)
	}
	if got, want := string(msg.Bytes()), "hello console\n"; got != want {
		t.Fatalf("console text: got %q, want %q", got, want)
	}
}

func TestWriteChunksLongText(t *testing.T) {
	k := newUserKernel(t)
	text := strings.Repeat("x", 3000)
	runProgram(t, k, "bulk", func(env *kernel.Env) int64 {
		n, err := Print(env, text)
		if err != nil {
			t.Errorf("Print: %v", err)
		}
		if n != len(text) {
			t.Errorf("Print length: got %d, want %d", n, len(text))
		}
		return 0
	})
	if got := drainConsole(k); got != text {
		t.Fatalf("console got %d bytes, want %d", len(got), len(text))
	}
}

func TestWriteBadFd(t *testing.T) {
	k := newUserKernel(t)
	var werr error
	runProgram(t, k, "misfit", func(env *kernel.Env) int64 {
		_, werr = Write(env, 7, "nope")
		return 0
	})
	if !errors.Is(werr, kernel.ErrnoBadFd) {
		t.Fatalf("Write to fd 7: got %v, want %v", werr, kernel.ErrnoBadFd)
	}
}

func TestLogRoutesToLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	k, err := kernel.New(kernel.Config{Mode: kernel.ModeCooperative, Log: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pid := runProgram(t, k, "chatty", func(env *kernel.Env) int64 {
		if err := Log(env, "status nominal"); err != nil {
			t.Errorf("Log: %v", err)
		}
		return 0
	})
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("Log produced no entry")
	}
	if got, want := entry.Message, "status nominal"; got != want {
		t.Fatalf("log message: got %q, want %q", got, want)
	}
	if got, want := entry.Data["pid"], pid; got != want {
		t.Fatalf("log pid field: got %v, want %v", got, want)
	}
	if !k.Console().Empty() {
		t.Fatalf("Log leaked onto the console ring")
	}
}

func TestReadDrainsInput(t *testing.T) {
	k := newUserKernel(t)
	k.PushInput('o')
	k.PushInput('k')
	runProgram(t, k, "reader", func(env *kernel.Env) int64 {
		var buf [8]byte
		n, err := Read(env, buf[:])
		if err != nil {
			t.Errorf("Read: %v", err)
		}
		if n != 2 || string(buf[:n]) != "ok" {
			t.Errorf("Read: got %d bytes %q, want 2 bytes %q", n, buf[:n], "ok")
		}
		n, err = Read(env, buf[:])
		if err != nil || n != 0 {
			t.Errorf("drained Read: n=%d err=%v, want 0", n, err)
		}
		return 0
	})
}

func TestSpawnAndWait(t *testing.T) {
	k := newUserKernel(t)
	childEntry := k.Programs().Register("seven", func(*kernel.Env) int64 { return 7 })
	var code int64
	var werr error
	runProgram(t, k, "parent", func(env *kernel.Env) int64 {
		pid, err := Spawn(env, childEntry)
		if err != nil {
			t.Errorf("Spawn: %v", err)
			return 1
		}
		code, werr = Wait(env, pid)
		return 0
	})
	if werr != nil || code != 7 {
		t.Fatalf("Wait: code=%d err=%v, want 7", code, werr)
	}
}

func TestPSFromProgram(t *testing.T) {
	k := newUserKernel(t)
	var listing string
	var perr error
	runProgram(t, k, "inspector", func(env *kernel.Env) int64 {
		listing, perr = PS(env)
		return 0
	})
	if perr != nil {
		t.Fatalf("PS: %v", perr)
	}
	if want := "1 Running\n"; listing != want {
		t.Fatalf("PS: got %q, want %q", listing, want)
	}
}

func TestUptimeFromProgram(t *testing.T) {
	k := newUserKernel(t)
	for i := 0; i < 2*kernel.TickHz; i++ {
		k.OnTick()
	}
	var up uint64
	runProgram(t, k, "clock", func(env *kernel.Env) int64 {
		up = Uptime(env)
		return 0
	})
	if up != 2 {
		t.Fatalf("Uptime: got %d, want 2", up)
	}
}

func TestSuiteSpawnerEndToEnd(t *testing.T) {
	k := newUserKernel(t)
	RegisterAll(k)
	pid, err := k.SpawnName(NameSpawner)
	if err != nil {
		t.Fatalf("SpawnName: %v", err)
	}
	if _, err := k.RunReady(); err != nil {
		t.Fatalf("RunReady: %v", err)
	}
	if code, err := k.Table().ExitCode(pid); err != nil || code != 0 {
		t.Fatalf("spawner exit: code=%d err=%v, want 0", code, err)
	}
	out := drainConsole(k)
	for _, want := range []string{
		"spawner: creating 3 tasks",
		"[task1] hello from test task 1",
		"[task2] exiting with code 1",
		"[task3] exiting with code 42",
		"spawner: pid 2 exited with code 0",
		"spawner: pid 3 exited with code 1",
		"spawner: pid 4 exited with code 42",
		"spawner: all tasks completed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestSuiteMinimalExplicitExit(t *testing.T) {
	k := newUserKernel(t)
	RegisterAll(k)
	pid, err := k.SpawnName(NameMinimal)
	if err != nil {
		t.Fatalf("SpawnName: %v", err)
	}
	if _, err := k.RunReady(); err != nil {
		t.Fatalf("RunReady: %v", err)
	}
	if st, err := k.Table().Status(pid); err != nil || st != kernel.StatusExited {
		t.Fatalf("minimal status: %v/%v, want Exited", st, err)
	}
	if code, err := k.Table().ExitCode(pid); err != nil || code != 0 {
		t.Fatalf("minimal exit code: %d/%v, want 0", code, err)
	}
	if out := drainConsole(k); !strings.Contains(out, "minimal userspace shell") {
		t.Fatalf("console output missing banner:\n%s", out)
	}
}

func TestSuiteCounterLogs(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	k, err := kernel.New(kernel.Config{Mode: kernel.ModeCooperative, Log: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	RegisterAll(k)
	if _, err := k.SpawnName(NameCounter); err != nil {
		t.Fatalf("SpawnName: %v", err)
	}
	if _, err := k.RunReady(); err != nil {
		t.Fatalf("RunReady: %v", err)
	}
	passes := 0
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "counter pass") {
			passes++
		}
	}
	if passes != 3 {
		t.Fatalf("counter log passes: got %d, want 3", passes)
	}
}
