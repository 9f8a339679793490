//go:build linux

package bootstrap

import (
	"os"
	"os/exec"
	"syscall"

	sperrors "github.com/oxfordcbrg/spsd/pkg/errors"
)

// daemonizedEnvVar marks a re-exec'd child as already detached, so it
// does not fork again.
const daemonizedEnvVar = "SPSD_DAEMONIZED"

// Daemonize detaches the process from its controlling terminal, retains
// the current working directory, and redirects stdin/stdout/stderr to
// /dev/null. Go cannot call the libc daemon(3) directly, so this
// re-execs the current binary with the same arguments in a new session,
// then exits the parent -- the idiomatic Go equivalent of fork+setsid.
func Daemonize() error {
	if os.Getenv(daemonizedEnvVar) == "1" {
		return nil
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return sperrors.WrapBootstrapError("daemonize", sperrors.ErrDaemonizeFailed)
	}
	defer devNull.Close()

	exe, err := os.Executable()
	if err != nil {
		return sperrors.WrapBootstrapError("daemonize", sperrors.ErrDaemonizeFailed)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return sperrors.WrapBootstrapError("daemonize", sperrors.ErrDaemonizeFailed)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), daemonizedEnvVar+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return sperrors.WrapBootstrapError("daemonize", sperrors.ErrDaemonizeFailed)
	}

	os.Exit(0)
	return nil
}
