package fakeserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Serve runs the fake MCP server until EOF on in, ctx cancellation, or the
// configured request budget is exhausted. In Concurrent mode each request is
// handled in its own goroutine, so per-method delays produce out-of-order
// replies; frame writes stay atomic behind a shared lock either way.
func Serve(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	reader := bufio.NewReader(in)
	w := &writer{out: out}
	requestCount := 0

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req rpcRequest
		if err := json.Unmarshal(bytes.TrimSpace(line), &req); err != nil {
			return err
		}

		if cfg.CrashOnMethod != "" && req.Method == cfg.CrashOnMethod {
			os.Exit(cfg.CrashExitCode)
		}

		// Notifications carry no id and get no reply.
		if req.ID == nil {
			continue
		}

		requestCount++

		if cfg.Concurrent {
			wg.Add(1)
			go func(req rpcRequest) {
				defer wg.Done()
				handle(w, cfg, req)
			}(req)
		} else {
			handle(w, cfg, req)
		}

		if cfg.ExitAfterRequests > 0 && requestCount >= cfg.ExitAfterRequests {
			return nil
		}
	}
}

// handle produces the reply for one request.
func handle(w *writer, cfg Config, req rpcRequest) {
	if delay, ok := cfg.Delays[req.Method]; ok {
		time.Sleep(delay)
	}

	if rpcErr, ok := cfg.Errors[req.Method]; ok {
		writeError(w, cfg, req.ID, rpcErr)
		return
	}

	switch req.Method {
	case "initialize":
		writeResult(w, cfg, req.ID, InitializeResult{
			ProtocolVersion: "2025-11-25",
			ServerInfo:      ServerInfo{Name: "fake-server", Version: "1.0.0"},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		})

	case "tools/list":
		tools := cfg.Tools
		if tools == nil {
			tools = []Tool{}
		}
		writeResult(w, cfg, req.ID, ToolsListResult{Tools: tools})

	case "ping":
		writeResult(w, cfg, req.ID, struct{}{})

	case "tools/call":
		handleToolCall(w, cfg, req)

	default:
		writeError(w, cfg, req.ID, JSONRPCError{Code: -32601, Message: "Method not found"})
	}
}

func handleToolCall(w *writer, cfg Config, req rpcRequest) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, cfg, req.ID, JSONRPCError{Code: -32602, Message: "Invalid params"})
		return
	}

	if delay, ok := cfg.ToolDelays[params.Name]; ok {
		time.Sleep(delay)
	}

	if cfg.ToolHandler != nil {
		content, isErr, err := cfg.ToolHandler(params.Name, params.Arguments)
		if err != nil {
			writeError(w, cfg, req.ID, JSONRPCError{Code: -32603, Message: err.Error()})
			return
		}
		writeResult(w, cfg, req.ID, ToolCallResult{Content: content, IsError: isErr})
		return
	}

	if cfg.EchoToolCalls {
		text := fmt.Sprintf("called %s with %s", params.Name, params.Arguments)
		writeResult(w, cfg, req.ID, ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: text}},
		})
		return
	}

	writeError(w, cfg, req.ID, JSONRPCError{Code: -32601, Message: "Unknown tool"})
}
