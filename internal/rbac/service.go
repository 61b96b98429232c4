package rbac

import (
	"sort"
	"strings"
)

// Service resolves role grants.
type Service struct {
	roles map[string]Role
}

// NewService builds a Service over the built-in roles.
func NewService() *Service {
	return &Service{roles: builtinRoles}
}

// ListRoles returns the known roles sorted by name.
func (s *Service) ListRoles() []Role {
	out := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EffectivePermissions returns the permissions granted to a role. Unknown
// roles get nothing.
func (s *Service) EffectivePermissions(role string) []string {
	r, ok := s.roles[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return nil
	}
	out := make([]string, len(r.Permissions))
	copy(out, r.Permissions)
	return out
}
