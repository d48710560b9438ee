// Package retry provides exponential backoff and retry logic for handling
// transient failures in remote calls, particularly the link wrapping service
// and the TMDB catalog source.
//
// Features:
//   - Exponential and constant backoff strategies
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates tied to the pipeline error taxonomy
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return wrapper.Wrap(ctx, sourceURL, itemID)
//	}, nil)
//
//	// Remote calls: rate limit errors move onto a longer backoff curve
//	retrier := retry.NewHTTPRetrier(3, retry.DefaultExponentialBackoff(), log)
//	err := retrier.DoWithErrorType(ctx, func() error {
//		return client.fetchPage(ctx, page)
//	})
package retry
