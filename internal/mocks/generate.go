// Package mocks provides mock implementations for testing the relay services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our core interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRegistry := mocks.NewMockJobRegistry(ctrl)
//	mockRegistry.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRegistry interface from internal/core package.
// This creates MockJobRegistry with methods for all JobRegistry interface methods:
// Create, Get, Complete, Fail, Stats, FailPendingBefore, DeleteTerminalBefore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_registry_mock.go github.com/blogi/relay/internal/core JobRegistry

// Generate mock for Provider interface from internal/core package.
// This creates MockProvider with methods for all Provider interface methods:
// Kind, Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=provider_mock.go github.com/blogi/relay/internal/core Provider
