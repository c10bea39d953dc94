package auth

import (
	"fmt"
	"strings"

	"github.com/marvenixx/pos-console/internal/shared"
)

// StaffUser is an operator allowed to sign in to the console.
type StaffUser struct {
	Username     string
	FullName     string
	Role         string
	PasswordHash string
}

// Principal converts the user into the request principal.
func (u StaffUser) Principal() *shared.Principal {
	return &shared.Principal{Username: u.Username, FullName: u.FullName, Role: u.Role}
}

// ParseStaffUsers reads the STAFF_USERS format: entries separated by ';',
// each "username:full name:role:bcrypt hash".
func ParseStaffUsers(raw string) ([]StaffUser, error) {
	var users []StaffUser
	seen := make(map[string]struct{})
	for i, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("auth: staff entry %d: want username:full name:role:hash", i+1)
		}
		user := StaffUser{
			Username:     strings.ToLower(strings.TrimSpace(parts[0])),
			FullName:     strings.TrimSpace(parts[1]),
			Role:         strings.ToLower(strings.TrimSpace(parts[2])),
			PasswordHash: strings.TrimSpace(parts[3]),
		}
		if user.Username == "" || user.PasswordHash == "" {
			return nil, fmt.Errorf("auth: staff entry %d: username and hash required", i+1)
		}
		if user.Role != shared.RoleAdmin && user.Role != shared.RoleCashier {
			return nil, fmt.Errorf("auth: staff entry %d: unknown role %q", i+1, user.Role)
		}
		if _, dup := seen[user.Username]; dup {
			return nil, fmt.Errorf("auth: duplicate staff user %q", user.Username)
		}
		seen[user.Username] = struct{}{}
		users = append(users, user)
	}
	return users, nil
}
