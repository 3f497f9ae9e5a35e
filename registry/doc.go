// Package registry is the process-wide directory of live BufferPools: a
// singleton, guarded by one mutex, that pools register with on
// construction and unregister from on teardown, purely for introspection
// and aggregate statistics.
package registry
