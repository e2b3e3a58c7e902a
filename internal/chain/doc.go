// Package chain owns the execution-layer boundary.
//
// Ownership boundary:
// - backend interface and error classification
// - ArbWasm/ArbSys precompile calldata
// - JSON-RPC backend with endpoint failover
// - in-memory simulated backend for tests and dry runs
package chain
