package cmd

import "errors"

// exitCoder is implemented by errors that carry a process exit code.
// Subcommands wrap their failures with one; main maps it to os.Exit.
type exitCoder interface {
	error
	ExitCode() int
}

// ExitCode extracts the exit code from an error chain, defaulting to 1.
func ExitCode(err error) int {
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return 1
}
