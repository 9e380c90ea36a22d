// Package logging builds the process logger. Every handler it returns is
// wrapped in a sanitizer that redacts secret-looking attributes and replaces
// token identifiers with per-process fingerprints, so log files never link a
// moment to a specific device.
package logging
