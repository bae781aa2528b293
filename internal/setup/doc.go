// Package setup checks the host for the external tools squeeze can call.
//
// It is a collection of checks and constants, and is therefore the only
// package allowed to use a package-level logger.
package setup
