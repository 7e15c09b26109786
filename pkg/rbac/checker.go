package rbac

import (
	"fmt"
	"sort"
	"time"
)

// table holds an explicit decision for every (role, catalogue pair).
var table = buildTable()

func buildTable() map[Role]map[Permission]bool {
	t := make(map[Role]map[Permission]bool, len(grants))
	for _, role := range Roles() {
		decisions := make(map[Permission]bool)
		for _, p := range allOf(catalogue) {
			decisions[p] = false
		}
		for _, p := range grants[role] {
			if _, ok := decisions[p]; !ok {
				panic(fmt.Sprintf("rbac: role %q grants %s which is not in the catalogue", role, p))
			}
			decisions[p] = true
		}
		t[role] = decisions
	}
	for role := range grants {
		if !role.Valid() {
			panic(fmt.Sprintf("rbac: grants defined for unknown role %q", role))
		}
	}
	return t
}

// Check reports whether role is granted every (resource, action) pair in req.
// Unknown roles, resources and actions are denied, as is a resource named with
// no actions. An empty request is allowed.
func Check(role Role, req Request) bool {
	decisions, ok := table[role]
	if !ok {
		return false
	}
	for res, actions := range req {
		if _, known := catalogue[res]; !known || len(actions) == 0 {
			return false
		}
		for _, act := range actions {
			if !decisions[Permission{Resource: res, Action: act}] {
				return false
			}
		}
	}
	return true
}

// Allowed is the single-permission form of Check.
func Allowed(role Role, p Permission) bool {
	return Check(role, Request{p.Resource: {p.Action}})
}

// PermissionCheckResult represents the result of a permission check
type PermissionCheckResult struct {
	Allowed   bool         `json:"allowed"`
	Reason    string       `json:"reason,omitempty"`
	Role      Role         `json:"role"`
	Denied    []Permission `json:"denied,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// Explain evaluates req like Check and reports which pairs were denied.
func Explain(role Role, req Request) *PermissionCheckResult {
	result := &PermissionCheckResult{Role: role, CheckedAt: time.Now()}

	decisions, ok := table[role]
	if !ok {
		result.Reason = fmt.Sprintf("unknown role %q", role)
		return result
	}

	for _, res := range sortedResources(req) {
		if len(req[res]) == 0 {
			result.Denied = append(result.Denied, Permission{Resource: res})
			continue
		}
		for _, act := range req[res] {
			p := Permission{Resource: res, Action: act}
			if !decisions[p] {
				result.Denied = append(result.Denied, p)
			}
		}
	}

	if len(result.Denied) == 0 {
		result.Allowed = true
		result.Reason = fmt.Sprintf("granted by role %s", role)
	} else {
		result.Reason = fmt.Sprintf("role %s lacks %v", role, result.Denied)
	}
	return result
}

// Grants returns the permissions granted to role in catalogue order.
func Grants(role Role) []Permission {
	decisions, ok := table[role]
	if !ok {
		return nil
	}
	var perms []Permission
	for _, p := range allOf(catalogue) {
		if decisions[p] {
			perms = append(perms, p)
		}
	}
	return perms
}

// Catalogue returns every known (resource, action) pair.
func Catalogue() []Permission {
	return allOf(catalogue)
}

func sortedResources(req Request) []Resource {
	out := make([]Resource, 0, len(req))
	for res := range req {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
