//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
	"time"
)

// killGrace is how long a tool gets after SIGTERM to remove its partial
// files before the whole process group is killed.
const killGrace = 2 * time.Second

// Tools run in their own process group so ffmpeg children spawned by
// yt-dlp's post-processors are stopped with it.
func configureCommandForTermination(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateCommand(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		_ = cmd.Process.Kill()
		return
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
		return
	}
	time.AfterFunc(killGrace, func() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	})
}
