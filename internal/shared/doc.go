// Package shared holds helpers used across packages. Its testutil
// subpackage offers fixtures, a capturing slog handler and a recording
// alert notifier for tests.
package shared
