// Package shared holds helpers used across the mass upload packages that
// belong to no single layer.
//
// The testutil subpackage provides a buffered slog handler so tests can
// assert on the structured logs a component emits:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := services.NewUploadService(..., logger)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "upload finished")
package shared
