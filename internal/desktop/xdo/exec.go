package xdo

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

type Exec interface {
	Output(name string, args ...string) ([]byte, error)
	Run(name string, args ...string) error
	RunWithInput(input []byte, name string, args ...string) error
}

type RealExec struct{}

// Output returns stdout only; stderr is folded into the error.
func (r *RealExec) Output(name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, wrapStderr(err, stderr.String())
	}
	return out, nil
}

func (r *RealExec) Run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return wrapStderr(err, string(out))
	}
	return nil
}

func (r *RealExec) RunWithInput(input []byte, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return wrapStderr(err, string(out))
	}
	return nil
}

func wrapStderr(err error, msg string) error {
	msg = strings.TrimSpace(msg)
	if msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
