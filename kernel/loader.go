package kernel

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"orbital/arch"
)

var (
	ErrEmptyImage    = errors.New("kernel: empty binary image")
	ErrImageTooLarge = errors.New("kernel: image larger than the process stack")
)

// LoadBinary turns an ELF image into a Ready process using the
// flat-load model: the whole image is copied verbatim to the base of
// the new process's stack window, no segments are mapped, and the
// recorded entry point is the load address plus the entry offset the
// header names. The process is not queued; callers decide when it
// runs.
func (k *Kernel) LoadBinary(image []byte, name string) (ProcessID, error) {
	if len(image) == 0 {
		return NoProcess, ErrEmptyImage
	}
	info, err := ParseELF(image)
	if err != nil {
		return NoProcess, err
	}
	if info.Size > arch.StackSize {
		return NoProcess, ErrImageTooLarge
	}
	pid, err := k.table.CreateImage(name, image, info.Entry)
	if err != nil {
		return NoProcess, err
	}
	k.log.WithFields(logrus.Fields{
		"pid":   pid,
		"name":  name,
		"entry": fmt.Sprintf("%#x", info.Entry),
		"size":  info.Size,
	}).Debug("loaded binary")
	return pid, nil
}

// SpawnImage loads image and queues the new process for execution.
func (k *Kernel) SpawnImage(image []byte, name string) (ProcessID, error) {
	pid, err := k.LoadBinary(image, name)
	if err != nil {
		return NoProcess, err
	}
	k.sched.Enqueue(pid)
	k.Kick()
	return pid, nil
}

// SpawnMultiple loads count instances of image, named name-0 through
// name-(count-1), queueing each. It stops at the first failure and
// returns the ids created before it.
func (k *Kernel) SpawnMultiple(image []byte, name string, count int) ([]ProcessID, error) {
	pids := make([]ProcessID, 0, count)
	for i := 0; i < count; i++ {
		pid, err := k.SpawnImage(image, fmt.Sprintf("%s-%d", name, i))
		if err != nil {
			return pids, err
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
