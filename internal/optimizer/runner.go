package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner resolves and executes compressor binaries.
type Runner interface {
	LookPath(binary string) (string, error)
	Run(ctx context.Context, bin string, args ...string) error
}

// ExecRunner runs binaries from PATH.
type ExecRunner struct{}

func (ExecRunner) LookPath(binary string) (string, error) {
	return exec.LookPath(binary)
}

func (ExecRunner) Run(ctx context.Context, bin string, args ...string) error {
	c := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}
