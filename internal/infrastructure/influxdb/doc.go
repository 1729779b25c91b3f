// Package influxdb exports gate-attempt metrics to an InfluxDB v2 server.
//
// Metrics are an optional, best-effort side channel: points are batched
// and written asynchronously, and when the server is down or the
// integration is disabled the relay simply drops them. The audit trail,
// not this package, is the durable record of attempts.
package influxdb
