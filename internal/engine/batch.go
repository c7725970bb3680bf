package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/coastalgo/bathyfetch/internal/config"
)

// BatchRequest is the handoff to downstream batch processing: where both
// manifests landed and the root they are relative to. The engine's
// obligation ends here.
type BatchRequest struct {
	RasterManifest    string
	TracklineManifest string
	OutputRoot        string
}

// BatchTrigger receives the finished manifests of a both-archives run.
type BatchTrigger interface {
	Run(ctx context.Context, req BatchRequest) error
}

// NoopTrigger satisfies BatchTrigger without doing anything; the default
// when no batch command is configured.
type NoopTrigger struct{}

func (NoopTrigger) Run(context.Context, BatchRequest) error { return nil }

// ExecTrigger invokes the configured batch command with the manifest
// locations appended to its argument list.
type ExecTrigger struct {
	Command config.BatchCommand
	Runner  ExecRunner
	Timeout time.Duration
}

func (t *ExecTrigger) Run(ctx context.Context, req BatchRequest) error {
	if t.Command.Bin == "" {
		return fmt.Errorf("batch trigger requested but no batch command configured")
	}
	args := append([]string{}, t.Command.Args...)
	args = append(args, req.RasterManifest, req.TracklineManifest)

	result := t.Runner.Run(ctx, ExecSpec{
		Bin:     t.Command.Bin,
		Args:    args,
		Dir:     req.OutputRoot,
		Timeout: t.Timeout,
	})
	if result.Err != nil || result.ExitCode != 0 {
		return fmt.Errorf("batch command %s exited %d: %s", t.Command.Bin, result.ExitCode, result.StderrTail)
	}
	return nil
}
