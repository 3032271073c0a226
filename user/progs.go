package user

import (
	"fmt"

	"orbital/kernel"
)

// Names of the built-in programs. The shell's spawn command cycles
// through the four numbered tasks.
const (
	NameTask1   = "task1"
	NameTask2   = "task2"
	NameTask3   = "task3"
	NameTask4   = "task4"
	NameSpawner = "spawner"
	NameCounter = "counter"
	NameMinimal = "minimal"
)

// TaskNames lists the numbered demo tasks in spawn order.
var TaskNames = [4]string{NameTask1, NameTask2, NameTask3, NameTask4}

var numberedTasks = [len(TaskNames)]kernel.Program{task1, task2, task3, task4}

// RegisterAll installs the built-in suite into k's program registry.
// The spawner captures the entry addresses assigned here, so it can
// create its workers by address the way compiled code would.
func RegisterAll(k *kernel.Kernel) {
	reg := k.Programs()
	var entries [len(TaskNames)]uint64
	for i, name := range TaskNames {
		entries[i] = reg.Register(name, numberedTasks[i])
	}
	reg.Register(NameSpawner, func(env *kernel.Env) int64 {
		return spawner(env, entries)
	})
	reg.Register(NameCounter, counter)
	reg.Register(NameMinimal, minimal)
}

func task1(env *kernel.Env) int64 {
	Print(env, "[task1] hello from test task 1\n")
	Print(env, "[task1] exiting with code 0\n")
	return 0
}

func task2(env *kernel.Env) int64 {
	Print(env, "[task2] hello from test task 2\n")
	Print(env, "[task2] performing some work\n")
	Print(env, "[task2] exiting with code 1\n")
	return 1
}

func task3(env *kernel.Env) int64 {
	Print(env, "[task3] hello from test task 3\n")
	Print(env, "[task3] exiting with code 42\n")
	return 42
}

func task4(env *kernel.Env) int64 {
	Print(env, "[task4] quick task executed\n")
	return 0
}

// spawner creates the first three numbered tasks and collects their
// exit codes, demonstrating task_create and task_wait end to end. Its
// own exit code is the number of workers that could not be accounted
// for.
func spawner(env *kernel.Env, entries [len(TaskNames)]uint64) int64 {
	Print(env, "spawner: creating 3 tasks\n")
	pids := make([]kernel.ProcessID, 0, 3)
	for i := 0; i < 3; i++ {
		pid, err := Spawn(env, entries[i])
		if err != nil {
			Printf(env, "spawner: create %s: %v\n", TaskNames[i], err)
			continue
		}
		Printf(env, "spawner: created %s as pid %d\n", TaskNames[i], pid)
		pids = append(pids, pid)
	}
	failed := 3 - len(pids)
	for _, pid := range pids {
		code, err := Wait(env, pid)
		if err != nil {
			Printf(env, "spawner: wait pid %d: %v\n", pid, err)
			failed++
			continue
		}
		Printf(env, "spawner: pid %d exited with code %d\n", pid, code)
	}
	Print(env, "spawner: all tasks completed\n")
	return int64(failed)
}

// counter exercises the log and uptime calls from task context.
func counter(env *kernel.Env) int64 {
	for i := 1; i <= 3; i++ {
		Log(env, fmt.Sprintf("counter pass %d at %d seconds", i, Uptime(env)))
	}
	return 0
}

// minimal is the smallest useful program: prove the write and exit
// paths work, nothing else. It exits explicitly instead of returning.
func minimal(env *kernel.Env) int64 {
	Print(env, "minimal userspace shell\n")
	Print(env, "type 'help' in the system shell for commands\n")
	Exit(env, 0)
	return 0 // not reached, Exit unwinds
}
