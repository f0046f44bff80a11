// Package logging configures the process-wide slog logger.
//
// Text output uses a colour handler meant for terminals; JSON output uses the
// standard slog JSON handler. LevelCritical sits above error and is reserved for
// conditions that stop a session for good, such as an unknown character name.
package logging
