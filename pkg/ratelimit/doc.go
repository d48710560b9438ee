// Package ratelimit provides pacing for outbound remote calls.
//
// Two implementations are available:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Suitable for APIs with a documented requests-per-window quota
//
// Interval Limiter:
//   - Fixed minimum delay between consecutive calls
//   - Suitable for APIs that ask for a per-request delay (the TMDB fetch
//     source and the link wrapping service both fall in this category)
//
// All limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait(ctx) error - Block until a request is allowed or ctx is cancelled
//   - Reset() - Reset the limiter state
package ratelimit
