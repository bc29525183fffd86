// Package memory holds typed object pools for hot buffers.
package memory
