// Package telemetry provides structured logging, Prometheus metrics, and
// distributed tracing for the cloud resource manager.
package telemetry
