// Package accel models the secure crypto accelerator the engine runs on.
//
// The Accelerator exposes AES block operations, a table of secret keys that
// never leave the secure boundary in hardware (global constant lc128, the chip
// secret, the DCP trust anchors and the pairing key) and a secure random
// source. Code that touches secret keys runs inside a Section, the scoped
// elevated-trust guard:
//
//	sec := acc.Enter()
//	defer sec.Exit()
//	lc128, err := acc.SecretKey(accel.KeyLC128)
//
// Software implements the interface in memory for tests and for the developer
// binary.
package accel
