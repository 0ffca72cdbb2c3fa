// Package models provides ready-made optimal control problems used by
// the command line tool and the test suite. Each constructor builds the
// symbolic dynamics and objective terms on a fresh expression pool.
package models
