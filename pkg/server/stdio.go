// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/tools"
)

// Stdio speaks a line-delimited JSON tool protocol: one request object
// per line in, one response object per line out. Agent runtimes attach
// it over the process's standard streams.
type Stdio struct {
	catalog *tools.Catalog
	log     *zap.Logger

	// writeMu keeps concurrent responses from interleaving on the
	// output stream.
	writeMu sync.Mutex
}

func NewStdio(catalog *tools.Catalog, log *zap.Logger) *Stdio {
	return &Stdio{catalog: catalog, log: log}
}

type stdioRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"params"`
}

type stdioResponse struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *stdioError     `json:"error,omitempty"`
}

type stdioError struct {
	Message string `json:"message"`
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"readOnly"`
}

// Run reads requests until the input closes or the context ends.
// Each request is served on its own goroutine; the catalog serializes
// what needs serializing.
func (s *Stdio) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req stdioRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.respond(out, stdioResponse{Error: &stdioError{
				Message: fmt.Sprintf("malformed request: %v", err),
			}})
			continue
		}

		wg.Add(1)
		go func(req stdioRequest) {
			defer wg.Done()
			s.respond(out, s.serve(ctx, req))
		}(req)
	}
	return scanner.Err()
}

func (s *Stdio) serve(ctx context.Context, req stdioRequest) stdioResponse {
	switch req.Method {
	case "tools/list":
		ops := s.catalog.Operations()
		list := make([]toolInfo, 0, len(ops))
		for _, op := range ops {
			list = append(list, toolInfo{
				Name:        op.Name,
				Description: op.Description,
				ReadOnly:    op.ReadOnly,
			})
		}
		return stdioResponse{ID: req.ID, Result: map[string]any{"tools": list}}
	case "tools/call":
		out, err := s.catalog.Invoke(ctx, req.Params.Name, req.Params.Arguments)
		if err != nil {
			return stdioResponse{ID: req.ID, Error: &stdioError{Message: err.Error()}}
		}
		return stdioResponse{ID: req.ID, Result: out}
	default:
		return stdioResponse{ID: req.ID, Error: &stdioError{
			Message: fmt.Sprintf("unknown method %q", req.Method),
		}}
	}
}

func (s *Stdio) respond(out io.Writer, resp stdioResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := out.Write(append(raw, '\n')); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}
