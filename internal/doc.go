// Package internal contains the implementation packages of the filesplit CLI.
//
// # Package Organization
//
//   - types: split policy, part naming and index parsing shared by split and verify
//   - textenc: text encodings of sources and parts
//   - split: streams a source into bounded parts, one committed file at a time
//   - verify: checks bounds, headers and line reconciliation of existing parts
//   - report: renders split and sanity results as text, JSON, YAML or TOML
//   - watcher: debounced fsnotify watching of an inbox directory
//   - config: viper-backed configuration with validation
//   - errors: typed errors carrying a code, a path and context
//   - logging: structured logging on log/slog
//   - version: build information
//   - testutils: fixtures for package tests
//
// # Data Flow
//
// The split command hands a policy to split.Splitter, which writes parts
// named <stem>-part<N><ext> through temporary files that are renamed once
// complete. verify.Verifier rediscovers those parts from disk and never
// trusts the splitter's own accounting. The watch command runs the same
// pipeline for every file that settles in its inbox.
//
// # Testing Strategy
//
//   - Unit tests next to each package, table-driven where inputs vary
//   - Property tests behind the "property" build tag
//   - Fuzz tests for configuration parsing
//   - goleak checks for packages that start goroutines
package internal
