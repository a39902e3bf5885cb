// Package logging builds the process logger and slog decorators for
// external collaborators.
package logging
