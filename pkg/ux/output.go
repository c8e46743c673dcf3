// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ux writes command output for humans. Logs go to the zap
// logger, command output goes to the writer, never both for the same
// line.
package ux

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

var Logger *UserLog

type UserLog struct {
	log    *zap.Logger
	writer io.Writer
}

func NewUserLog(log *zap.Logger, userwriter io.Writer) {
	if Logger == nil {
		Logger = &UserLog{
			log:    log,
			writer: userwriter,
		}
	}
}

// PrintToUser prints msg directly to the command output.
func (ul *UserLog) PrintToUser(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(ul.writer, msg+"\n", args...)
}

// Info logs an info message without printing it.
func (ul *UserLog) Info(msg string, args ...interface{}) {
	ul.log.Info(fmt.Sprintf(msg, args...))
}

// Error logs and prints an error message.
func (ul *UserLog) Error(msg string, args ...interface{}) {
	formatted := fmt.Sprintf(msg, args...)
	ul.log.Error(formatted)
	_, _ = fmt.Fprintln(ul.writer, formatted)
}

// PrintTable renders rows under a header on the command output.
func (ul *UserLog) PrintTable(header []string, rows [][]string) {
	table := tablewriter.NewTable(ul.writer)
	anyHeader := make([]any, len(header))
	for i, h := range header {
		anyHeader[i] = h
	}
	table.Header(anyHeader...)
	for _, row := range rows {
		_ = table.Append(row)
	}
	_ = table.Render()
}
