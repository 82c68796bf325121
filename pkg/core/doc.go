// Package core provides the domain models and interfaces for the durajobs
// package: the job row, its state machine, the storage contract, and the
// error types handlers use to steer retry behavior.
//
// Most users should import the root package github.com/jdziat/durajobs
// which re-exports these types.
package core
