// Package storage provides the FlowStorage backends that keep authorization
// state and tokens across the redirect round trip and across process runs.
//
// # Backends
//
//   - memory: process-local map, used by tests and one-shot commands
//   - file: a single JSON document guarded by a lock file
//   - redis: shared storage under a key prefix
//   - sqlite: a single flow_storage table
//   - keyring: the operating system keyring with a maintained key index
//
// All backends treat removal of an absent key as success and return a
// snapshot from Keys so callers may remove entries while iterating.
//
// SECURITY: stored values include refresh tokens and PKCE verifiers. Values
// are never logged; only keys are.
package storage
