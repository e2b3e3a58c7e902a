// Package lifecycle owns the two-phase deployment protocol for Stylus
// programs.
//
// Ownership boundary:
// - deployed program registry and records
// - activation gate and receipt attachment
// - deploy/activate/initialize orchestration
// - lifecycle error taxonomy
package lifecycle
