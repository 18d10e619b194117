package process

import (
	"io"
	"os"
)

// Launcher starts a child process and exposes its state.
type Launcher interface {
	Start(command string, args []string, env []string) error
	Wait() error
	ProcessState() *os.ProcessState
	Process() *os.Process
	Stop() error
}

// PTY is a Launcher whose child is attached to a pseudo-terminal.
type PTY interface {
	Launcher
	GetPTY() *os.File
	CopyIO(stdin io.Reader, stdout io.Writer) error
}
