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
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/otlp"
)

type sendFlags struct {
	level   string
	context string
	attrs   map[string]string
}

func newSendCmd(root *rootFlags) *cobra.Command {
	flags := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one record, or one record per stdin line",
		Long: `Send joins its arguments into a single record. With no arguments, or
with "-", every non-empty stdin line becomes its own record. All records are
delivered in one batch; the command fails if the collector rejects it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, root, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.level, "level", "l", "info", "record level: debug, info, warn or error")
	cmd.Flags().StringVarP(&flags.context, "context", "c", "", "context name prefixed to messages")
	cmd.Flags().StringToStringVarP(&flags.attrs, "attr", "a", nil, "record attribute as key=value (repeatable)")
	return cmd
}

func runSend(cmd *cobra.Command, root *rootFlags, flags *sendFlags, args []string) error {
	level, ok := slogotlp.ParseLevel(flags.level)
	if !ok {
		return fmt.Errorf("unknown level %q", flags.level)
	}
	logger, err := root.newLogger(cmd)
	if err != nil {
		return err
	}
	if flags.context != "" {
		logger = logger.NewContext(flags.context)
	}
	logger = logger.With(attrArgs(flags.attrs)...)

	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		n, err := sendLines(logger, level, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	} else {
		logger.Log(level, strings.Join(args, " "))
	}

	if err := logger.Flush(commandContext(cmd)); err != nil {
		return fmt.Errorf("deliver records: %w", err)
	}
	return nil
}

// maxLineBytes bounds one record; longer lines are truncated.
const maxLineBytes = 1 << 20

// sendLines logs each non-empty line of r and returns how many were logged.
// Lines longer than maxLineBytes are cut and marked truncated=true. On a read
// error the rest of r is drained so a writer on the other end never blocks.
func sendLines(logger *slogotlp.Logger, level slogotlp.Level, r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, maxLineBytes)
	n := 0
	for {
		line, truncated, err := readLine(br)
		if text := strings.TrimRight(line, "\r"); strings.TrimSpace(text) != "" {
			if truncated {
				logger.Log(level, text, otlp.String("truncated", "true"))
			} else {
				logger.Log(level, text)
			}
			n++
		}
		switch {
		case errors.Is(err, io.EOF):
			return n, nil
		case err != nil:
			_, _ = io.Copy(io.Discard, br)
			return n, fmt.Errorf("read input: %w", err)
		}
	}
}

// readLine returns the next line without its newline. When the line does not
// fit in br's buffer the first buffer's worth is returned and the remainder
// up to the newline is discarded.
func readLine(br *bufio.Reader) (string, bool, error) {
	chunk, err := br.ReadSlice('\n')
	line := strings.TrimSuffix(string(chunk), "\n")
	truncated := false
	for errors.Is(err, bufio.ErrBufferFull) {
		truncated = true
		_, err = br.ReadSlice('\n')
	}
	return line, truncated, err
}

// attrArgs turns --attr pairs into sorted key/value args.
func attrArgs(attrs map[string]string) []any {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, attrs[k])
	}
	return args
}
