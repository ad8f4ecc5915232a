// Package confirmation prompts the user before destructive steps:
// importing into a database and overriding a protected target.
package confirmation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	apperrors "db-sync-tool/internal/errors"
)

// Service asks yes/no questions on a terminal.
type Service interface {
	// Confirm asks the question and returns the user's answer. With
	// autoYes the question is skipped and answered true. Without a
	// terminal on stdin and without autoYes it returns an error
	// instead of hanging: the default answer for unattended runs is
	// abort, never proceed.
	Confirm(question string, autoYes bool) (bool, error)
}

type service struct {
	in       io.Reader
	out      io.Writer
	terminal bool
}

// NewService returns a Service reading from stdin.
func NewService() Service {
	return &service{
		in:       os.Stdin,
		out:      os.Stdout,
		terminal: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
}

// NewServiceForTest wires explicit streams and skips the TTY check.
func NewServiceForTest(in io.Reader, out io.Writer) Service {
	return &service{in: in, out: out, terminal: true}
}

func (s *service) Confirm(question string, autoYes bool) (bool, error) {
	if autoYes {
		fmt.Fprintln(s.out, color.GreenString("✓")+" "+question+" yes (--yes)")
		return true, nil
	}
	if !s.terminal {
		return false, apperrors.Newf(apperrors.ErrorTypeConfiguration,
			"confirmation required but no terminal is attached, re-run with --yes to proceed")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	answers := make(chan bool, 1)
	readErrs := make(chan error, 1)
	go func() {
		answer, err := s.prompt(question)
		if err != nil {
			readErrs <- err
			return
		}
		answers <- answer
	}()

	select {
	case <-interrupt:
		fmt.Fprintln(s.out)
		return false, apperrors.Newf(apperrors.ErrorTypeInterruption, "cancelled by user")
	case err := <-readErrs:
		return false, fmt.Errorf("cannot read confirmation: %w", err)
	case answer := <-answers:
		return answer, nil
	}
}

func (s *service) prompt(question string) (bool, error) {
	reader := bufio.NewReader(s.in)
	for {
		fmt.Fprint(s.out, color.New(color.Bold).Sprint(question+" [y/N]: "))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		default:
			fmt.Fprintln(s.out, "Please answer 'y' or 'n'.")
		}
	}
}
