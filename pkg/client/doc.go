// Package client provides handler registration and job insertion for the
// durajobs package. A Client wraps a core.Storage and is shared by the
// engine, the maintenance plugins, and application code enqueueing work.
package client
