// Package model defines the provider-agnostic abstractions for interacting
// with language models inside Tribunal.
//
// Core goals:
//   - Treat generation as a single opaque request/response operation
//   - Normalize token usage reporting across vendors (TokenUsage)
//   - Surface tool/function calls without interpreting them
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the consultation engine remains decoupled from vendor SDKs.
// Vendor capabilities are resolved once at adapter construction and exposed
// via Info(), never re-derived per call from provider name strings.
package model
