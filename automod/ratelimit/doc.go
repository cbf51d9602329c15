// Automod component for per-actor admission control.
//
// Each actor gets a token bucket with a fixed capacity and a fixed refill
// rate. Admission is a pure check: it never blocks or waits. Buckets for
// actors which have gone quiet are evicted by a periodic janitor sweep.
package ratelimit
