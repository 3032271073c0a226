package shell

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"orbital/internal/buildinfo"
	"orbital/kernel"
	"orbital/user"
)

func (s *Service) initRegistry() error {
	r := newRegistry()
	if err := registerCoreCommands(r); err != nil {
		return err
	}
	s.reg = r
	return nil
}

func registerCoreCommands(r *registry) error {
	for _, cmd := range []command{
		{Name: "help", Usage: "help", Desc: "Show this help", Run: cmdHelp},
		{Name: "echo", Usage: "echo <text>", Desc: "Echo text", Run: cmdEcho},
		{Name: "ps", Usage: "ps", Desc: "List processes", Run: cmdPS},
		{Name: "pid", Usage: "pid", Desc: "Show current PID", Run: cmdPID},
		{Name: "uptime", Usage: "uptime", Desc: "Show kernel uptime", Run: cmdUptime},
		{Name: "ping", Usage: "ping", Desc: "Connectivity test", Run: cmdPing},
		{Name: "spawn", Usage: "spawn <n>", Desc: "Spawn n tasks", Run: cmdSpawn},
		{Name: "wait", Usage: "wait <pid>", Desc: "Wait for process", Run: cmdWait},
		{Name: "run", Usage: "run", Desc: "Execute ready tasks", Run: cmdRun},
		{Name: "load", Usage: "load <image>", Desc: "Load ELF image(s)", Run: cmdLoad},
		{Name: "clear", Usage: "clear", Desc: "Clear screen", Run: cmdClear},
		{Name: "version", Usage: "version", Desc: "Show build info", Run: cmdVersion},
		{Name: "exit", Aliases: []string{"quit"}, Usage: "exit", Desc: "Exit shell", Run: cmdExit},
	} {
		if err := r.register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func cmdHelp(_ context.Context, s *Service, _ []string) error {
	s.printf("Available commands:\n")
	for _, cmd := range s.reg.ordered() {
		s.printf("  %-16s- %s\n", cmd.Usage, cmd.Desc)
	}
	return nil
}

func cmdEcho(_ context.Context, s *Service, args []string) error {
	s.printf("%s\n", strings.Join(args, " "))
	return nil
}

func cmdPS(_ context.Context, s *Service, _ []string) error {
	s.k.TTY().Write(s.k.PSText())
	return nil
}

func cmdPID(_ context.Context, s *Service, _ []string) error {
	pid := s.k.Syscall(kernel.NoProcess, kernel.SysGetPID, 0, 0, 0, 0, 0, 0)
	s.printf("Current PID: %d\n", pid)
	return nil
}

func cmdUptime(_ context.Context, s *Service, _ []string) error {
	secs := s.k.Syscall(kernel.NoProcess, kernel.SysUptime, 0, 0, 0, 0, 0, 0)
	s.printf("Uptime: %d seconds\n", secs)
	return nil
}

func cmdPing(_ context.Context, s *Service, _ []string) error {
	s.printf("pong\n")
	return nil
}

// cmdSpawn creates n processes cycling through the numbered test
// tasks, going through the syscall gate exactly like a running
// program would.
func cmdSpawn(_ context.Context, s *Service, args []string) error {
	if len(args) == 0 {
		s.printf("Usage: spawn <count>\n")
		return nil
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		s.printf("Usage: spawn <count>\n")
		return nil
	}

	for i := 0; i < count; i++ {
		name := user.TaskNames[i%len(user.TaskNames)]
		_, entry, ok := s.k.Programs().ByName(name)
		if !ok {
			return fmt.Errorf("task %q is not registered", name)
		}
		pid := s.k.Syscall(kernel.NoProcess, kernel.SysTaskCreate, entry, 0, 0, 0, 0, 0)
		if pid > 0 {
			s.printf("Spawned task %d: PID %d\n", i+1, pid)
		}
	}
	return nil
}

func cmdWait(_ context.Context, s *Service, args []string) error {
	if len(args) == 0 {
		s.printf("Usage: wait <pid>\n")
		return nil
	}
	pid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || pid == 0 {
		s.printf("Usage: wait <pid>\n")
		return nil
	}

	s.printf("Waiting for PID %d...\n", pid)
	ret := s.k.Syscall(kernel.NoProcess, kernel.SysTaskWait, pid, 0, 0, 0, 0, 0)
	if ret < 0 {
		s.printf("wait: %v\n", kernel.Errno(ret))
		return nil
	}
	s.printf("Process completed with code %d\n", ret)
	return nil
}

func cmdRun(_ context.Context, s *Service, _ []string) error {
	s.printf("Executing all ready processes...\n")
	n, err := s.k.RunReady()
	if err != nil {
		return err
	}
	s.printf("Executed %d process(es)\n", n)
	return nil
}

// cmdLoad reads an ELF image from the host filesystem and spawns it,
// optionally as several instances with derived names.
func cmdLoad(_ context.Context, s *Service, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		s.printf("Usage: load <image> [count]\n")
		return nil
	}
	count := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			s.printf("Usage: load <image> [count]\n")
			return nil
		}
		count = n
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	base := filepath.Base(args[0])
	name := strings.TrimSuffix(base, filepath.Ext(base))

	if count == 1 {
		pid, err := s.k.SpawnImage(image, name)
		if err != nil {
			return err
		}
		s.printf("Spawned %s: PID %d\n", name, pid)
		return nil
	}

	pids, err := s.k.SpawnMultiple(image, name, count)
	for i, pid := range pids {
		s.printf("Spawned %s-%d: PID %d\n", name, i, pid)
	}
	if err != nil {
		return err
	}
	s.printf("Spawned %d process(es)\n", len(pids))
	return nil
}

func cmdClear(_ context.Context, s *Service, _ []string) error {
	s.k.TTY().Clear()
	return nil
}

func cmdVersion(_ context.Context, s *Service, _ []string) error {
	s.printf("%s\n", buildinfo.Line())
	return nil
}

func cmdExit(_ context.Context, s *Service, _ []string) error {
	s.printf("Exiting...\n")
	return ErrExit
}
