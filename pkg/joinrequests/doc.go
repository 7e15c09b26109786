// Package joinrequests lets users ask to join an organization and lets admins approve or reject them.
package joinrequests
