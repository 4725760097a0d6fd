// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pjscruggs/slogotlp"
)

type runFlags struct {
	context string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command and ship its output",
		Long: `Run executes a command, logging each stdout line at INFO and each stderr
line at WARN. A non-zero exit is logged at ERROR. Everything is delivered in
one batch after the command exits, and otlplog exits with the command's code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, root, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.context, "context", "c", "", "context name (default: command base name)")
	return cmd
}

func runCommand(cmd *cobra.Command, root *rootFlags, flags *runFlags, args []string) error {
	logger, err := root.newLogger(cmd)
	if err != nil {
		return err
	}
	name := flags.context
	if name == "" {
		name = filepath.Base(args[0])
	}
	logger = logger.NewContext(name)

	return logger.Run(commandContext(cmd), func(ctx context.Context) error {
		return execLogged(ctx, cmd, args)
	})
}

// execLogged runs args, logging output through the logger in ctx.
func execLogged(ctx context.Context, cmd *cobra.Command, args []string) error {
	logger := slogotlp.FromContext(ctx)

	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Stdin = cmd.InOrStdin()
	stdout, err := c.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := c.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, logger.With("stream", "stdout"), slogotlp.LevelInfo, stdout)
	go streamLines(&wg, logger.With("stream", "stderr"), slogotlp.LevelWarn, stderr)
	wg.Wait()

	if err := c.Wait(); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	logger.Info("command completed", "exit_code", 0)
	return nil
}

// streamLines logs one output stream of the child. sendLines drains the pipe
// on failure, so the child never blocks on a full pipe.
func streamLines(wg *sync.WaitGroup, logger *slogotlp.Logger, level slogotlp.Level, r io.Reader) {
	defer wg.Done()
	if _, err := sendLines(logger, level, r); err != nil {
		logger.Warn("reading command output failed", "error", err.Error())
	}
}
