//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr places the child in its own process group so terminate/kill
// reach the whole tree (a dashboard and anything it spawned).
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	// Negative pid signals the process group
	if err := unix.Kill(-pid, sig); err != nil {
		unix.Kill(pid, sig)
	}
}

func terminate(cmd *exec.Cmd) {
	signalGroup(cmd, unix.SIGTERM)
}

func kill(cmd *exec.Cmd) {
	signalGroup(cmd, unix.SIGKILL)
}
