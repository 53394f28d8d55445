// Package pandoc converts note content between document formats by running
// the pandoc executable.
package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultExecutable = "pandoc"

var ErrNotInstalled = errors.New("pandoc executable not found")

type Converter interface {
	Convert(ctx context.Context, content, from, to string) (string, error)
}

// commandRunner runs an executable with stdin and returns its stdout.
var commandRunner = func(ctx context.Context, path string, args []string, stdin string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", err, msg)
}

type Pandoc struct {
	Executable string
	ExtraArgs  []string
}

func (p Pandoc) executable() (string, error) {
	name := p.Executable
	if name == "" {
		name = DefaultExecutable
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}
	return path, nil
}

// Convert pipes content through pandoc. Identical formats are returned
// unchanged without starting a process.
func (p Pandoc) Convert(ctx context.Context, content, from, to string) (string, error) {
	if from == to {
		return content, nil
	}
	path, err := p.executable()
	if err != nil {
		return "", err
	}
	args := append([]string{"--from", from, "--to", to, "--wrap=none"}, p.ExtraArgs...)
	out, err := commandRunner(ctx, path, args, content)
	if err != nil {
		return "", fmt.Errorf("pandoc %s -> %s: %w", from, to, err)
	}
	return string(out), nil
}

// Version reports the first line of pandoc --version.
func (p Pandoc) Version(ctx context.Context) (string, error) {
	path, err := p.executable()
	if err != nil {
		return "", err
	}
	out, err := commandRunner(ctx, path, []string{"--version"}, "")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Passthrough returns content unchanged. It serves exports that keep the
// archive's HTML.
type Passthrough struct{}

func (Passthrough) Convert(_ context.Context, content, _, _ string) (string, error) {
	return content, nil
}
