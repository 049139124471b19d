// Package api implements the HTTP surface of the route planner service.
package api

import "net/http"

const defaultTenant = "t_demo"

type Principal struct {
	Tenant string
	Role   string // admin, dispatcher
}

// getPrincipal reads tenant and role from the gateway headers. Requests
// without headers act as the demo tenant's admin.
func (s *Server) getPrincipal(r *http.Request) Principal {
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = defaultTenant
	}
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
