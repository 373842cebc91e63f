package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/store"
)

// fakeDirectory is an in-memory Directory
type fakeDirectory struct {
	mu            sync.Mutex
	nextID        int64
	tenants       map[int64]*model.Tenant
	audit         []string
	createErr     error
	softDeleteErr error
	listErr       error
	creates       int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{tenants: map[int64]*model.Tenant{}}
}

func (d *fakeDirectory) Create(ctx context.Context, name, subdomain string, adminID int64) (*model.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	if d.createErr != nil {
		return nil, d.createErr
	}
	schema := model.DeriveSchemaName(subdomain)
	for _, t := range d.tenants {
		if t.DeletedAt == nil && (t.Subdomain == subdomain || t.SchemaName == schema) {
			return nil, apperr.New(apperr.CodeDuplicateTenant, "tenant with this subdomain already exists", nil)
		}
	}
	d.nextID++
	now := time.Now()
	t := &model.Tenant{
		ID: d.nextID, Name: name, Subdomain: subdomain, SchemaName: schema,
		Status: model.TenantStatusActive, CreatedAt: now, UpdatedAt: now, CreatedByAdminID: adminID,
	}
	d.tenants[t.ID] = t
	d.audit = append(d.audit, fmt.Sprintf("Created new tenant: %s (%s)", name, subdomain))
	cp := *t
	return &cp, nil
}

func (d *fakeDirectory) active(id int64) (*model.Tenant, error) {
	t, ok := d.tenants[id]
	if !ok || t.DeletedAt != nil {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

func (d *fakeDirectory) GetByID(ctx context.Context, id int64) (*model.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.active(id)
	if err != nil {
		return nil, err
	}
	cp := *t
	return &cp, nil
}

func (d *fakeDirectory) GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tenants {
		if t.DeletedAt == nil && t.Subdomain == subdomain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (d *fakeDirectory) List(ctx context.Context, opts store.ListOptions) ([]model.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := []model.Tenant{}
	for _, t := range d.tenants {
		if t.DeletedAt != nil || (opts.Status != "" && t.Status != opts.Status) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (d *fakeDirectory) Update(ctx context.Context, id int64, name string, status model.TenantStatus, adminID int64) (*model.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.active(id)
	if err != nil {
		return nil, err
	}
	d.audit = append(d.audit, fmt.Sprintf(`Updated tenant %d - Name: "%s" → "%s", Status: "%s" → "%s"`, id, t.Name, name, t.Status, status))
	t.Name, t.Status, t.UpdatedAt = name, status, time.Now()
	cp := *t
	return &cp, nil
}

func (d *fakeDirectory) SoftDelete(ctx context.Context, id int64, adminID int64) (*model.DeletedTenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.softDeleteErr != nil {
		return nil, d.softDeleteErr
	}
	t, err := d.active(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	t.DeletedAt, t.Status = &now, model.TenantStatusTerminated
	d.audit = append(d.audit, fmt.Sprintf("Deleted tenant: %s (ID: %d, subdomain: %s)", t.Name, id, t.Subdomain))
	return &model.DeletedTenant{Success: true, Name: t.Name, ID: t.ID}, nil
}

type seededUser struct {
	FirstName, LastName, Email, PasswordHash, Subdomain string
	Roles                                               []string
}

// fakeProvisioner keeps schemas in memory and runs seed functions against fakeTx
type fakeProvisioner struct {
	mu           sync.Mutex
	schemas      map[string]bool
	users        map[string][]seededUser
	provisionErr error
	verifyErr    error
	verifyStatus *model.SchemaStatus
	scopedErr    error
	executeErr   error
	executed     []string
	failRole     bool
	dropErr      error
	onProvision  func()
	provisioned  []string
	dropped      []string
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{schemas: map[string]bool{}, users: map[string][]seededUser{}}
}

func (p *fakeProvisioner) Provision(ctx context.Context, schema string) (*model.ProvisionResult, error) {
	if p.onProvision != nil {
		p.onProvision()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provisioned = append(p.provisioned, schema)
	if p.provisionErr != nil {
		return nil, p.provisionErr
	}
	if p.schemas[schema] {
		return &model.ProvisionResult{Schema: schema, AlreadyProvisioned: true}, nil
	}
	p.schemas[schema] = true
	return &model.ProvisionResult{Schema: schema, Created: true, Statements: 9}, nil
}

func (p *fakeProvisioner) Verify(ctx context.Context, schema string) (model.SchemaStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.verifyErr != nil {
		return model.SchemaStatus{}, p.verifyErr
	}
	if p.verifyStatus != nil {
		return *p.verifyStatus, nil
	}
	exists := p.schemas[schema]
	st := model.SchemaStatus{SchemaExists: exists, UsersTableExists: exists}
	if !exists {
		st.MissingTables = []string{"teams", "users", "roles"}
	}
	return st, nil
}

func (p *fakeProvisioner) ExecuteScoped(ctx context.Context, schema, sql string, args ...any) ([]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executed = append(p.executed, schema)
	if p.executeErr != nil {
		return nil, p.executeErr
	}
	if !strings.Contains(sql, "count(*)") || !strings.Contains(sql, "FROM users") {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
	return []map[string]any{{"users": int64(len(p.users[schema]))}}, nil
}

func (p *fakeProvisioner) InScopedTx(ctx context.Context, schema string, fn func(tx pgx.Tx) error) error {
	if p.scopedErr != nil {
		return p.scopedErr
	}
	tx := &fakeTx{failRole: p.failRole}
	if err := fn(tx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[schema] = append(p.users[schema], tx.users...)
	return nil
}

func (p *fakeProvisioner) Drop(ctx context.Context, schema string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dropErr != nil {
		return p.dropErr
	}
	delete(p.schemas, schema)
	p.dropped = append(p.dropped, schema)
	return nil
}

// fakeTx implements the two pgx.Tx methods used by seeding; any other call panics.
type fakeTx struct {
	pgx.Tx
	users    []seededUser
	failRole bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if !strings.Contains(sql, "INSERT INTO users") {
		return fakeRow{err: fmt.Errorf("unexpected query: %s", sql)}
	}
	t.users = append(t.users, seededUser{
		FirstName:    args[0].(string),
		LastName:     args[1].(string),
		Email:        args[2].(string),
		PasswordHash: args[3].(string),
		Subdomain:    args[4].(string),
	})
	return fakeRow{id: int64(len(t.users))}
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if !strings.Contains(sql, "INSERT INTO roles") {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
	}
	if t.failRole {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	}
	userID := args[0].(int64)
	t.users[userID-1].Roles = append(t.users[userID-1].Roles, "admin")
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	return nil
}

type fakeHasher struct {
	err error
}

func (h fakeHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

func (h fakeHasher) Check(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type recordedEvent struct {
	RunID    uuid.UUID
	TenantID *int64
	State    model.ProvisioningState
	Details  map[string]any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *fakeEvents) Record(ctx context.Context, runID uuid.UUID, tenantID *int64, state model.ProvisioningState, details map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{RunID: runID, TenantID: tenantID, State: state, Details: details})
	return nil
}

func (e *fakeEvents) states() []model.ProvisioningState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ProvisioningState, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.State
	}
	return out
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (a *fakeAudit) Record(ctx context.Context, adminID int64, action string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, fmt.Sprintf("%d:%s", adminID, action))
	return nil
}
