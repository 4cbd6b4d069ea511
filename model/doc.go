// Package model defines the provider-agnostic abstractions for calling
// generative text providers from the Loom engine.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Normalize provider failures into a typed Error with a retryability
//     classification the dispatcher can act on
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (Gemini, Anthropic, OpenAI) implement the Model interface from
// this package so the dispatcher and pipeline remain decoupled from vendor
// SDKs.
package model
