// Package transitions holds the status transition tables for jobs and applications.
//
// The tables are the single source of truth: the pipeline service validates
// writes against them and the API serves them read-only so clients can grey out
// moves that would be rejected. Moving to the current status is always allowed.
package transitions
