// Package mocks provides gomock implementations of the portal ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// Generated files are checked in so tests build without running the generator.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	backend := mocks.NewMockBackend(ctrl)
//	backend.EXPECT().WhoAmI(gomock.Any(), "token").Return(profile, nil)
package mocks

// Generate mock for Backend interface from internal/ports package.
// This creates MockBackend with methods for all Backend interface methods:
// Login, WhoAmI, Logout, Do
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=backend_mock.go github.com/jemaat/portal/internal/ports Backend

// Generate mock for CredentialStore interface from internal/ports package.
// This creates MockCredentialStore with methods for all CredentialStore interface methods:
// Get, Set, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/jemaat/portal/internal/ports CredentialStore
