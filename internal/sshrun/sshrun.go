// Package sshrun executes a single command on a remote printer host over
// SSH. It exists for fleet chores like restarting webcamd on a Klipper SBC.
package sshrun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// Defaults for the historical webcamd restart use case.
const (
	DefaultHost    = "192.168.1.120"
	DefaultPort    = 22
	DefaultUser    = "root"
	DefaultCommand = "sudo service webcamd restart"
)

const connectTimeout = 10 * time.Second

// Runner holds the connection parameters for one remote host.
type Runner struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Run connects to the remote host and executes the command, returning its
// combined stdout and stderr. The context bounds the whole operation.
func (r *Runner) Run(ctx context.Context, command string) (string, error) {
	port := r.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(r.Host, strconv.Itoa(port))

	config := &ssh.ClientConfig{
		User: r.User,
		Auth: []ssh.AuthMethod{ssh.Password(r.Password)},
		// Printer SBCs are reimaged often enough that host key pinning
		// would cause more harm than good on a trusted LAN.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	type result struct {
		output string
		err    error
	}
	done := make(chan result, 1)

	go func() {
		output, err := dialAndRun(addr, config, command)
		done <- result{output, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("ssh command to %s cancelled: %w", addr, ctx.Err())
	case res := <-done:
		return res.output, res.err
	}
}

// ExitStatus extracts the remote command's exit status from a Run error.
// nil means success (0); errors that carry no status, like connection or
// authentication failures, report 1.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus()
	}
	return 1
}

func dialAndRun(addr string, config *ssh.ClientConfig, command string) (string, error) {
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s as %s: %w", addr, config.User, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", addr, err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return string(output), fmt.Errorf("command %q failed on %s: %w", command, addr, err)
	}
	return string(output), nil
}
