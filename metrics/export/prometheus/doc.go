// Package prometheus renders an Engine's counters and session state in
// Prometheus text exposition format.
//
// Login attempts form one family labelled by classification (AUTHENTICATED,
// NEW_DEVICE, UNVERIFIED, FAILED). Backend latency is one histogram labelled
// by operation. The session gauges are always present; counter families
// appear only while metrics are enabled.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
