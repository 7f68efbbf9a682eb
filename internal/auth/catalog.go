package auth

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed permissions.json
var defaultCatalogJSON []byte

// Catalog is the static role → permission mapping plus the set of global
// permissions exempt from business-context resolution. It is loaded once at
// startup and read-only afterwards, so concurrent reads need no locking.
type Catalog struct {
	roles  map[string][]string
	sets   map[string]map[string]struct{}
	global map[string]struct{}
}

type catalogFile struct {
	Roles map[string]struct {
		Permissions []string `json:"permissions"`
	} `json:"roles"`
	GlobalPermissions []string `json:"globalPermissions"`
}

// LoadCatalog parses a permissions document. Pass nil to use the embedded
// default shipped with the binary.
func LoadCatalog(raw []byte) (*Catalog, error) {
	if raw == nil {
		raw = defaultCatalogJSON
	}
	var file catalogFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse permissions catalog: %w", err)
	}

	c := &Catalog{
		roles:  make(map[string][]string, len(file.Roles)),
		sets:   make(map[string]map[string]struct{}, len(file.Roles)),
		global: make(map[string]struct{}, len(file.GlobalPermissions)),
	}
	for name, role := range file.Roles {
		name = strings.ToUpper(strings.TrimSpace(name))
		perms := make([]string, 0, len(role.Permissions))
		set := make(map[string]struct{}, len(role.Permissions))
		for _, p := range role.Permissions {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, seen := set[p]; seen {
				continue
			}
			set[p] = struct{}{}
			perms = append(perms, p)
		}
		c.roles[name] = perms
		c.sets[name] = set
	}
	for _, p := range file.GlobalPermissions {
		p = strings.TrimSpace(p)
		if p != "" {
			c.global[p] = struct{}{}
		}
	}
	return c, nil
}

// LoadCatalogFile reads a catalog from disk; an empty path selects the
// embedded default.
func LoadCatalogFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return LoadCatalog(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permissions catalog: %w", err)
	}
	return LoadCatalog(raw)
}

// IsGlobalPermission reports whether the permission is grantable to any
// authenticated identity regardless of membership.
func (c *Catalog) IsGlobalPermission(permission string) bool {
	_, ok := c.global[permission]
	return ok
}

// PermissionsForRole returns the permission strings granted to role, in
// catalog order. Unknown roles yield nil.
func (c *Catalog) PermissionsForRole(role Role) []string {
	perms, ok := c.roles[string(role)]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission decides whether a role satisfies a required permission.
// Global permissions pass for any role. Otherwise an exact match is required,
// except that holding entity:action:business satisfies a request for
// entity:action:own. Broader grants imply narrower ones, never the reverse.
// Malformed permission strings never match and never error.
func (c *Catalog) HasPermission(role Role, permission string) bool {
	if c.IsGlobalPermission(permission) {
		return true
	}
	set, ok := c.sets[string(role)]
	if !ok {
		return false
	}
	if _, exact := set[permission]; exact {
		return true
	}

	entity, action, scope, ok := splitPermission(permission)
	if !ok || scope != "own" {
		return false
	}
	_, widened := set[entity+":"+action+":business"]
	return widened
}

// splitPermission breaks an entity:action:scope string into its parts.
func splitPermission(permission string) (entity, action, scope string, ok bool) {
	parts := strings.Split(permission, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
