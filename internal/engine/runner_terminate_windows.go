//go:build windows

package engine

import "os/exec"

func configureCommandForTermination(*exec.Cmd) {}

// Windows has no process groups to signal; yt-dlp leaves its .part files
// behind and picks them up on the next run.
func terminateCommand(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
