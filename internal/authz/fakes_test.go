// Copyright 2026 The Authgrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"context"
	"sync"
	"time"

	"github.com/authgrid/authgrid/internal/event"
)

// In-memory repository implementations shared by the package tests.
// They reproduce the temporal semantics of the postgres layer,
// including the active-row uniqueness guarantee on Insert.

type memRoleRepo struct {
	roles map[string]*Role
}

func newMemRoleRepo(roles ...*Role) *memRoleRepo {
	m := &memRoleRepo{roles: make(map[string]*Role)}
	for _, r := range roles {
		m.roles[r.ID] = r
	}
	return m
}

func (m *memRoleRepo) Create(_ context.Context, role *Role) error {
	m.roles[role.ID] = role
	return nil
}

func (m *memRoleRepo) GetActive(_ context.Context, id string) (*Role, error) {
	r, ok := m.roles[id]
	if !ok || r.Deleted {
		return nil, &NotFoundError{Kind: "role", ID: id}
	}
	return r, nil
}

func (m *memRoleRepo) GetAny(_ context.Context, id string) (*Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, &NotFoundError{Kind: "role", ID: id}
	}
	return r, nil
}

func (m *memRoleRepo) Update(_ context.Context, role *Role) error {
	m.roles[role.ID] = role
	return nil
}

func (m *memRoleRepo) ListActive(_ context.Context) ([]*Role, error) {
	var out []*Role
	for _, r := range m.roles {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out, nil
}

type memPermRepo struct {
	perms map[string]*Permission
}

func newMemPermRepo(perms ...*Permission) *memPermRepo {
	m := &memPermRepo{perms: make(map[string]*Permission)}
	for _, p := range perms {
		m.perms[p.ID] = p
	}
	return m
}

func (m *memPermRepo) Create(_ context.Context, p *Permission) error {
	m.perms[p.ID] = p
	return nil
}

func (m *memPermRepo) GetActive(_ context.Context, id string) (*Permission, error) {
	p, ok := m.perms[id]
	if !ok || p.Deleted {
		return nil, &NotFoundError{Kind: "permission", ID: id}
	}
	return p, nil
}

func (m *memPermRepo) GetAny(_ context.Context, id string) (*Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return nil, &NotFoundError{Kind: "permission", ID: id}
	}
	return p, nil
}

func (m *memPermRepo) Update(_ context.Context, p *Permission) error {
	m.perms[p.ID] = p
	return nil
}

func (m *memPermRepo) ListActive(_ context.Context) ([]*Permission, error) {
	var out []*Permission
	for _, p := range m.perms {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

type memUserRoleRepo struct {
	rows   []*UserRole
	nextID int64
	// rolePerms, when set, backs ActivePermissionIDs the way the SQL
	// join does in the postgres implementation.
	rolePerms *memRolePermRepo
}

func newMemUserRoleRepo() *memUserRoleRepo {
	return &memUserRoleRepo{nextID: 1}
}

func (m *memUserRoleRepo) Insert(_ context.Context, ur *UserRole) error {
	for _, row := range m.rows {
		if row.UserID == ur.UserID && row.RoleID == ur.RoleID && row.RevokedAt == nil {
			return &DuplicateAssignmentError{UserID: ur.UserID, RoleID: ur.RoleID}
		}
	}
	ur.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, ur)
	return nil
}

func (m *memUserRoleRepo) Save(_ context.Context, ur *UserRole) error {
	for i, row := range m.rows {
		if row.ID == ur.ID {
			m.rows[i] = ur
			return nil
		}
	}
	return ErrNotFound
}

func (m *memUserRoleRepo) FindActiveByUser(_ context.Context, userID string, now time.Time) ([]*UserRole, error) {
	var out []*UserRole
	for _, row := range m.rows {
		if row.UserID == userID && row.ActiveAt(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memUserRoleRepo) FindActiveByUserAndRole(_ context.Context, userID, roleID string, now time.Time) (*UserRole, error) {
	for _, row := range m.rows {
		if row.UserID == userID && row.RoleID == roleID && row.ActiveAt(now) {
			return row, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserRoleRepo) FindActiveByRole(_ context.Context, roleID string, now time.Time) ([]*UserRole, error) {
	var out []*UserRole
	for _, row := range m.rows {
		if row.RoleID == roleID && row.ActiveAt(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memUserRoleRepo) FindAtInstant(_ context.Context, userID string, t time.Time) ([]*UserRole, error) {
	var out []*UserRole
	for _, row := range m.rows {
		if row.UserID == userID && row.HeldAt(t) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memUserRoleRepo) ActivePermissionIDs(ctx context.Context, userID string, now time.Time) ([]string, error) {
	if m.rolePerms == nil {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range m.rows {
		if row.UserID != userID || !row.ActiveAt(now) {
			continue
		}
		grants, _ := m.rolePerms.FindActiveByRole(ctx, row.RoleID)
		for _, g := range grants {
			if !seen[g.PermissionID] {
				seen[g.PermissionID] = true
				out = append(out, g.PermissionID)
			}
		}
	}
	return out, nil
}

var _ UserRoleRepository = (*memUserRoleRepo)(nil)

type memRolePermRepo struct {
	rows   []*RolePermission
	nextID int64
}

func newMemRolePermRepo() *memRolePermRepo {
	return &memRolePermRepo{nextID: 1}
}

func (m *memRolePermRepo) Insert(_ context.Context, rp *RolePermission) error {
	for _, row := range m.rows {
		if row.RoleID == rp.RoleID && row.PermissionID == rp.PermissionID && row.RevokedAt == nil {
			return ErrDuplicateAssignment
		}
	}
	rp.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, rp)
	return nil
}

func (m *memRolePermRepo) Save(_ context.Context, rp *RolePermission) error {
	for i, row := range m.rows {
		if row.ID == rp.ID {
			m.rows[i] = rp
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRolePermRepo) FindActiveByRole(_ context.Context, roleID string) ([]*RolePermission, error) {
	var out []*RolePermission
	for _, row := range m.rows {
		if row.RoleID == roleID && row.Active() {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memRolePermRepo) FindActiveByRoleAndPermission(_ context.Context, roleID, permissionID string) (*RolePermission, error) {
	for _, row := range m.rows {
		if row.RoleID == roleID && row.PermissionID == permissionID && row.Active() {
			return row, nil
		}
	}
	return nil, ErrNotFound
}

type memResourcePermRepo struct {
	rows   []*ResourcePermission
	nextID int64
}

func newMemResourcePermRepo() *memResourcePermRepo {
	return &memResourcePermRepo{nextID: 1}
}

func (m *memResourcePermRepo) Insert(_ context.Context, rp *ResourcePermission) error {
	rp.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, rp)
	return nil
}

func (m *memResourcePermRepo) Save(_ context.Context, rp *ResourcePermission) error {
	for i, row := range m.rows {
		if row.ID == rp.ID {
			m.rows[i] = rp
			return nil
		}
	}
	return ErrNotFound
}

func (m *memResourcePermRepo) GetByID(_ context.Context, id int64) (*ResourcePermission, error) {
	for _, row := range m.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, &NotFoundError{Kind: "resource permission", ID: "unknown"}
}

func (m *memResourcePermRepo) FindActiveByUser(_ context.Context, userID string, now time.Time) ([]*ResourcePermission, error) {
	var out []*ResourcePermission
	for _, row := range m.rows {
		if row.UserID == userID && row.ActiveAt(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memResourcePermRepo) FindAtInstant(_ context.Context, userID string, t time.Time) ([]*ResourcePermission, error) {
	var out []*ResourcePermission
	for _, row := range m.rows {
		if row.UserID == userID && row.HeldAt(t) {
			out = append(out, row)
		}
	}
	return out, nil
}

type memDelegationRepo struct {
	rows   []*Delegation
	nextID int64
}

func newMemDelegationRepo() *memDelegationRepo {
	return &memDelegationRepo{nextID: 1}
}

func (m *memDelegationRepo) Insert(_ context.Context, d *Delegation) error {
	d.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, d)
	return nil
}

func (m *memDelegationRepo) Save(_ context.Context, d *Delegation) error {
	for i, row := range m.rows {
		if row.ID == d.ID {
			m.rows[i] = d
			return nil
		}
	}
	return ErrNotFound
}

func (m *memDelegationRepo) GetByID(_ context.Context, id int64) (*Delegation, error) {
	for _, row := range m.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, &NotFoundError{Kind: "delegation", ID: "unknown"}
}

func (m *memDelegationRepo) FindActiveByDelegatee(_ context.Context, delegateeID string, now time.Time) ([]*Delegation, error) {
	var out []*Delegation
	for _, row := range m.rows {
		if row.DelegateeID == delegateeID && row.ActiveAt(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memDelegationRepo) FindActiveByDelegator(_ context.Context, delegatorID string, now time.Time) ([]*Delegation, error) {
	var out []*Delegation
	for _, row := range m.rows {
		if row.DelegatorID == delegatorID && row.ActiveAt(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

type memUserDirectory struct {
	users map[string]bool
}

func newMemUserDirectory(userIDs ...string) *memUserDirectory {
	m := &memUserDirectory{users: make(map[string]bool)}
	for _, id := range userIDs {
		m.users[id] = true
	}
	return m
}

func (m *memUserDirectory) ActiveExists(_ context.Context, userID string) (bool, error) {
	return m.users[userID], nil
}

// recordingCache tracks invalidations and serves canned sets.
type recordingCache struct {
	mu          sync.Mutex
	data        map[string][]string
	puts        int
	gets        int
	hits        int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{data: make(map[string][]string)}
}

func (c *recordingCache) Get(_ context.Context, userID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	ids, ok := c.data[userID]
	if ok {
		c.hits++
	}
	return ids, ok
}

func (c *recordingCache) Put(_ context.Context, userID string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[userID] = ids
}

func (c *recordingCache) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	c.invalidated = append(c.invalidated, userID)
}

// recordingPublisher captures published changes synchronously.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []event.Change
}

func (p *recordingPublisher) Publish(c event.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) published() []event.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Change(nil), p.changes...)
}
