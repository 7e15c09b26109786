package transitions

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/hiregate/pkg/apperr"
)

// Kind names an entity whose status follows a transition table.
type Kind string

const (
	KindJob         Kind = "job"
	KindApplication Kind = "application"
)

// Job statuses
const (
	JobDraft    = "draft"
	JobOpen     = "open"
	JobClosed   = "closed"
	JobArchived = "archived"
)

// Application statuses
const (
	ApplicationNew       = "new"
	ApplicationScreening = "screening"
	ApplicationInterview = "interview"
	ApplicationOffer     = "offer"
	ApplicationHired     = "hired"
	ApplicationRejected  = "rejected"
)

// Table maps a status to the statuses it may move to.
type Table map[string][]string

var tables = map[Kind]Table{
	KindApplication: {
		ApplicationNew:       {ApplicationScreening, ApplicationInterview, ApplicationRejected},
		ApplicationScreening: {ApplicationInterview, ApplicationOffer, ApplicationRejected},
		ApplicationInterview: {ApplicationOffer, ApplicationRejected},
		ApplicationOffer:     {ApplicationHired, ApplicationRejected},
		ApplicationHired:     {},
		ApplicationRejected:  {ApplicationNew},
	},
	KindJob: {
		JobDraft:    {JobOpen, JobArchived},
		JobOpen:     {JobClosed, JobArchived},
		JobClosed:   {JobOpen, JobArchived},
		JobArchived: {JobDraft, JobOpen},
	},
}

var stateOrder = map[Kind][]string{
	KindApplication: {ApplicationNew, ApplicationScreening, ApplicationInterview, ApplicationOffer, ApplicationHired, ApplicationRejected},
	KindJob:         {JobDraft, JobOpen, JobClosed, JobArchived},
}

// Kinds returns the entity kinds with transition tables.
func Kinds() []Kind {
	return []Kind{KindJob, KindApplication}
}

// States returns every status of kind in lifecycle order.
func States(kind Kind) []string {
	return append([]string(nil), stateOrder[kind]...)
}

// IsState reports whether status is a known status of kind.
func IsState(kind Kind, status string) bool {
	_, ok := tables[kind][status]
	return ok
}

// AllowedTargets returns the statuses reachable from `from` in one step.
func AllowedTargets(kind Kind, from string) []string {
	return append([]string(nil), tables[kind][from]...)
}

// IsAllowed reports whether kind may move from `from` to `to`. Staying in the
// same known status is always allowed.
func IsAllowed(kind Kind, from, to string) bool {
	t, ok := tables[kind]
	if !ok {
		return false
	}
	targets, ok := t[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range targets {
		if s == to {
			return true
		}
	}
	return false
}

// Validate returns nil when the move is allowed, otherwise an InvalidTransition
// error carrying the allowed targets.
func Validate(kind Kind, from, to string) error {
	if IsAllowed(kind, from, to) {
		return nil
	}
	allowed := AllowedTargets(kind, from)
	return &apperr.Error{
		Kind:    apperr.KindInvalidTransition,
		Op:      "transitions.Validate",
		Message: Message(from, to, allowed),
		Allowed: allowed,
	}
}

// Message renders the client-facing description of a rejected transition.
func Message(from, to string, allowed []string) string {
	list := "none"
	if len(allowed) > 0 {
		list = strings.Join(allowed, ", ")
	}
	return fmt.Sprintf("Cannot transition from %q to %q. Allowed: %s", from, to, list)
}

// Snapshot returns a copy of every table, keyed by kind, for UI hints.
func Snapshot() map[Kind]Table {
	kinds := Kinds()
	out := make(map[Kind]Table, len(kinds))
	for _, kind := range kinds {
		cp := make(Table, len(tables[kind]))
		for _, from := range States(kind) {
			cp[from] = append([]string{}, tables[kind][from]...)
		}
		out[kind] = cp
	}
	return out
}
