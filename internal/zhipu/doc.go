// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package zhipu provides the HTTP client for the Zhipu BigModel API.
//
// The client covers the streaming chat endpoint, asynchronous chat and video
// tasks, synchronous image generation, and async result lookup. Every call
// authenticates with a bearer key obtained from an APIKeyFunc and fails fast
// with ErrMissingAPIKey before any network I/O when no key is configured.
//
// # Key Types
//
//   - Client: HTTP client with TLS 1.2+, rate limiting and error classification
//   - ChatStream: Pull-based reader over a server-sent event chat stream
//   - AsyncResult: Result of an asynchronous chat or video task
//   - HTTPError: Non-2xx response with status code and truncated body
//   - TransportError: Network failure classified as DNS, offline, timeout or other
//   - DecodeError: 2xx response whose body could not be decoded
//
// # Usage
//
// Stream a chat completion:
//
//	client := zhipu.NewClient(cfg.APIKey)
//	stream, err := client.ChatStream(ctx, zhipu.ChatRequest{
//	    Model:    "glm-4.5-flash",
//	    Messages: []zhipu.Message{{Role: "user", Content: "Hello"}},
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Content)
//	}
//
// # Security
//
// API keys are never logged and all requests use TLS 1.2+.
package zhipu
