// Package ca wraps the external certificate-authority tool. The tool is an
// opaque collaborator: it is handed an identity and is expected to leave
// {identity}.crt and {identity}.key in the client material directory.
package ca

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Generator produces signed certificate/key material for an identity.
type Generator interface {
	Generate(ctx context.Context, identity string) error
}

// ToolError carries the tool's stderr for a non-zero exit. The text is
// surfaced to callers through the task result, never retried automatically.
type ToolError struct {
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("certificate tool failed: %s", e.Stderr)
	}
	return fmt.Sprintf("certificate tool failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// EasyRSA invokes an easy-rsa style CLI as a synchronous subprocess.
type EasyRSA struct {
	// Command is the tool binary, e.g. "./easyrsa".
	Command string
	// Dir is the working directory the tool runs in (its PKI root).
	Dir string
	// ExtraArgs are appended after the identity, e.g. "nopass".
	ExtraArgs []string
}

func (e *EasyRSA) Generate(ctx context.Context, identity string) error {
	args := append([]string{"build-client-full", identity}, e.ExtraArgs...)

	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = e.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ToolError{Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}
