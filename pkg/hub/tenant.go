package hub

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"chathub/pkg/errors"
)

// Tenant owns the users and groups of one namespace. All mutation goes
// through its methods, each serialized by the tenant lock; operations on
// different tenants proceed in parallel.
//
// Users and group members are kept in insertion order, matching the
// ordered-collection semantics callers observe.
type Tenant struct {
	id string

	mu     sync.Mutex
	users  []User
	groups []*Group
}

// NewTenant creates an empty tenant for the given (already normalized) id.
func NewTenant(id string) *Tenant {
	return &Tenant{id: id}
}

// ID returns the tenant's namespace id.
func (t *Tenant) ID() string {
	return t.id
}

// IsEmpty reports whether the tenant has no users and no groups. An empty
// tenant is eligible for removal from the registry.
func (t *Tenant) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users) == 0 && len(t.groups) == 0
}

// UserCount returns the number of users known to the tenant.
func (t *Tenant) UserCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}

// GroupCount returns the number of groups known to the tenant.
func (t *Tenant) GroupCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.groups)
}

// AddUser appends a user. Duplicate ids are not rejected here: callers are
// expected to look the id up first and use UpdateUser on a hit, which is
// what UpsertUser does.
func (t *Tenant) AddUser(u User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users = append(t.users, u)
}

// GetUser looks a user up by id, or by connection id when byConnection is
// set. A lookup against a tenant with zero users returns ErrTenantNoUsers:
// that state signals a cleanup bug upstream and is distinct from a plain
// miss, which returns ErrUserNotFound.
func (t *Tenant) GetUser(identifier string, byConnection bool) (User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getUser(identifier, byConnection)
}

func (t *Tenant) getUser(identifier string, byConnection bool) (User, error) {
	if len(t.users) == 0 {
		return User{}, fmt.Errorf("tenant %s: %w", t.id, errors.ErrTenantNoUsers)
	}

	for _, u := range t.users {
		if byConnection && u.ConnectionID == identifier {
			return u, nil
		}
		if !byConnection && u.ID == identifier {
			return u, nil
		}
	}

	return User{}, errors.ErrUserNotFound
}

// UpdateUser replaces the stored record matching u.ID. An absent id is an
// explicit ErrUserNotFound, never a silent no-op.
func (t *Tenant) UpdateUser(u User) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updateUser(u)
}

func (t *Tenant) updateUser(u User) error {
	for i := range t.users {
		if t.users[i].ID == u.ID {
			t.users[i] = u
			return nil
		}
	}
	return errors.ErrUserNotFound
}

// UpsertUser is the register flow: reattach the connection if the id is
// already known, otherwise add a new user. Returns the stored user and
// whether it was created.
func (t *Tenant) UpsertUser(userID, connectionID string) (User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := User{ID: userID, ConnectionID: connectionID}
	if err := t.updateUser(u); err == nil {
		return u, false
	}
	t.users = append(t.users, u)
	return u, true
}

// DeleteUser removes the user with the given id and cascades: the user is
// first filtered out of whichever group currently lists them.
func (t *Tenant) DeleteUser(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteUser(id)
}

func (t *Tenant) deleteUser(id string) error {
	u, err := t.getUser(id, false)
	if err != nil {
		return err
	}

	t.groupRemoveUser(u)

	for i := range t.users {
		if t.users[i].ID == id {
			t.users = append(t.users[:i], t.users[i+1:]...)
			break
		}
	}
	return nil
}

// GroupRemoveUser filters the user out of the first group whose member list
// carries the user's connection id. Reports whether a membership was
// removed; no matching group is a no-op, not an error.
func (t *Tenant) GroupRemoveUser(u User) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.groupRemoveUser(u)
}

func (t *Tenant) groupRemoveUser(u User) bool {
	if len(t.groups) == 0 {
		return false
	}

	g := t.getUserGroup(u.ConnectionID)
	if g == nil {
		return false
	}

	kept := make([]User, 0, len(g.Members))
	for _, m := range g.Members {
		if m.ConnectionID != u.ConnectionID {
			kept = append(kept, m)
		}
	}
	g.Members = kept
	return true
}

// GetUserGroup returns the first group (by iteration order) containing a
// member with the given connection id.
func (t *Tenant) GetUserGroup(connectionID string) (Group, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.getUserGroup(connectionID)
	if g == nil {
		return Group{}, false
	}
	return snapshotGroup(g), true
}

func (t *Tenant) getUserGroup(connectionID string) *Group {
	for _, g := range t.groups {
		for _, m := range g.Members {
			if m.ConnectionID == connectionID {
				return g
			}
		}
	}
	return nil
}

// GetUserGroups returns every group containing a member with the given
// connection id.
func (t *Tenant) GetUserGroups(connectionID string) []Group {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Group
	for _, g := range t.groups {
		for _, m := range g.Members {
			if m.ConnectionID == connectionID {
				out = append(out, snapshotGroup(g))
				break
			}
		}
	}
	return out
}

// GetGroup looks a group up by id.
func (t *Tenant) GetGroup(id string) (Group, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == "" {
		return Group{}, false
	}
	for _, g := range t.groups {
		if g.ID == id {
			return snapshotGroup(g), true
		}
	}
	return Group{}, false
}

// Groups returns a snapshot of all groups.
func (t *Tenant) Groups() []Group {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Group, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, snapshotGroup(g))
	}
	return out
}

// RemoveGroups discards every group. Used once the tenant's user count has
// reached zero.
func (t *Tenant) RemoveGroups() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups = nil
}

// JoinGroup records group membership for the user currently attached to the
// given connection. The group is created on first join; membership entries
// are value snapshots of the user at join time and are appended without
// deduplication, matching the re-add-on-reconnect contract.
func (t *Tenant) JoinGroup(groupID, connectionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, err := t.getUser(connectionID, true)
	if err != nil {
		return fmt.Errorf("join group %s: %w", groupID, err)
	}

	member := User{ID: u.ID, ConnectionID: connectionID}
	for _, g := range t.groups {
		if g.ID == groupID {
			g.Members = append(g.Members, member)
			return nil
		}
	}

	t.groups = append(t.groups, &Group{ID: groupID, Members: []User{member}})
	return nil
}

// DistinctGroupUsers returns the distinct member snapshots appearing across
// all groups, in first-seen order.
func (t *Tenant) DistinctGroupUsers() []User {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.distinctGroupUsers()
}

func (t *Tenant) distinctGroupUsers() []User {
	seen := make(map[User]struct{})
	var out []User
	for _, g := range t.groups {
		for _, m := range g.Members {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// DistinctUsers resolves every distinct group member back to its live user
// record by connection id, silently skipping members whose connection can
// no longer be resolved. exclude, when non-nil and includeExclude is false,
// drops the caller's own user from the result.
func (t *Tenant) DistinctUsers(exclude *User, includeExclude bool) []User {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []User
	seen := make(map[string]struct{})
	for _, m := range t.distinctGroupUsers() {
		if _, ok := seen[m.ConnectionID]; ok {
			continue
		}
		seen[m.ConnectionID] = struct{}{}

		u, err := t.getUser(m.ConnectionID, true)
		if err != nil {
			// Stale membership: the snapshot outlived the connection.
			continue
		}
		if !includeExclude && exclude != nil && u.ConnectionID == exclude.ConnectionID {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Roster returns the delimiter-joined ids of every other user reachable
// through the caller's groups, for the client to seed its contact list.
func (t *Tenant) Roster(connectionID, delimiter string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	logged, err := t.getUser(connectionID, true)
	if err != nil {
		return "", err
	}

	var ids []string
	seen := make(map[string]struct{})
	seenConn := make(map[string]struct{})
	for _, m := range t.distinctGroupUsers() {
		if _, ok := seenConn[m.ConnectionID]; ok {
			continue
		}
		seenConn[m.ConnectionID] = struct{}{}

		u, err := t.getUser(m.ConnectionID, true)
		if err != nil || u.ConnectionID == logged.ConnectionID {
			continue
		}
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}

	return strings.Join(ids, delimiter), nil
}

// Cleanup runs the disconnect cascade as one unit under the tenant lock:
// resolve the user by connection id and delete it (cascading membership
// removal); if the tenant has no users left, invoke leave for every group
// id before discarding the group list. The leave calls come first because
// leaving needs the group ids that are about to be dropped.
//
// Returns the removed user (zero value if the connection resolved to no
// user) and whether the tenant ended up empty and should be dropped from
// the registry.
func (t *Tenant) Cleanup(connectionID string, leave func(groupID string)) (removed User, found bool, empty bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, err := t.getUser(connectionID, true)
	switch {
	case err == nil:
		if derr := t.deleteUser(u.ID); derr == nil {
			removed, found = u, true
		}
	case stderrors.Is(err, errors.ErrTenantNoUsers):
		return User{}, false, false, err
	default:
		// Plain miss: nothing to delete, continue the cascade.
		err = nil
	}

	if len(t.users) == 0 {
		for _, g := range t.groups {
			if leave != nil {
				leave(g.ID)
			}
		}
		t.groups = nil
	}

	empty = len(t.users) == 0 && len(t.groups) == 0
	return removed, found, empty, nil
}

func snapshotGroup(g *Group) Group {
	members := make([]User, len(g.Members))
	copy(members, g.Members)
	return Group{ID: g.ID, Members: members}
}
