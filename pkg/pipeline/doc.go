// Package pipeline moves jobs and applications between statuses.
//
// Every change is checked against the transitions tables and written with a
// conditional update on the status that was read, so two reviewers racing on the
// same record cannot both succeed from the same starting state.
package pipeline
