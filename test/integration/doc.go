// Package integration runs monitoring sessions against real processes on the
// host with the real clock. Sessions take a few seconds each.
package integration
