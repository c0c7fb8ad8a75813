package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/models"
)

// In-memory repository implementations. They back the unit tests and the
// local development wiring; behavior mirrors the Postgres implementations,
// including the upsert fallbacks on conflicting inserts.

type MemoryAuditLogRepository struct {
	mu      sync.RWMutex
	entries []models.SecurityAuditLogEntry

	// FailNext forces the next call to return the given error, for
	// exercising fail-silent and fail-hard paths.
	FailNext error
}

func NewMemoryAuditLogRepository() *MemoryAuditLogRepository {
	return &MemoryAuditLogRepository{}
}

func (r *MemoryAuditLogRepository) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

func (r *MemoryAuditLogRepository) Insert(ctx context.Context, entry *models.SecurityAuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *MemoryAuditLogRepository) CountFailedLoginsFromIP(ctx context.Context, ip string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range r.entries {
		if e.EventType == models.EventLoginFailed && e.IPAddress == ip && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryAuditLogRepository) RecentSuccessfulLogins(ctx context.Context, userID uuid.UUID, limit int) ([]models.SecurityAuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	var out []models.SecurityAuditLogEntry
	for _, e := range r.entries {
		if e.UserID != nil && *e.UserID == userID && e.EventType == models.EventLogin && e.Success {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryAuditLogRepository) CountSuccessfulLoginsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range r.entries {
		if e.UserID != nil && *e.UserID == userID && e.EventType == models.EventLogin && e.Success && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Entries returns a copy of everything inserted so far.
func (r *MemoryAuditLogRepository) Entries() []models.SecurityAuditLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SecurityAuditLogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Seed appends entries without going through Insert.
func (r *MemoryAuditLogRepository) Seed(entries ...models.SecurityAuditLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
}

type deviceKey struct {
	userID      uuid.UUID
	fingerprint string
}

type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[deviceKey]*models.UserDevice
}

func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{devices: make(map[deviceKey]*models.UserDevice)}
}

func (r *MemoryDeviceRepository) GetByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.UserDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceKey{userID, fingerprint}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryDeviceRepository) Insert(ctx context.Context, device *models.UserDevice) (*models.UserDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey{device.UserID, device.DeviceFingerprint}
	now := time.Now().UTC()
	if existing, ok := r.devices[key]; ok {
		if now.After(existing.LastUsedAt) {
			existing.LastUsedAt = now
		}
		cp := *existing
		return &cp, nil
	}
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	if device.FirstSeenAt.IsZero() {
		device.FirstSeenAt = now
	}
	if device.LastUsedAt.IsZero() {
		device.LastUsedAt = now
	}
	cp := *device
	r.devices[key] = &cp
	out := cp
	return &out, nil
}

func (r *MemoryDeviceRepository) TouchLastUsed(ctx context.Context, deviceID uuid.UUID, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.ID == deviceID {
			if ts.After(d.LastUsedAt) {
				d.LastUsedAt = ts
			}
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryDeviceRepository) CountTrusted(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.devices {
		if d.UserID == userID && d.IsTrusted {
			n++
		}
	}
	return n, nil
}

func (r *MemoryDeviceRepository) CountFirstSeenSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.devices {
		if d.UserID == userID && !d.FirstSeenAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Devices returns all stored devices.
func (r *MemoryDeviceRepository) Devices() []models.UserDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.UserDevice, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// Seed stores devices directly.
func (r *MemoryDeviceRepository) Seed(devices ...models.UserDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range devices {
		d := devices[i]
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		r.devices[deviceKey{d.UserID, d.DeviceFingerprint}] = &d
	}
}

type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.UserSession

	FailNext error
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.UserSession)}
}

func (r *MemorySessionRepository) UpsertByToken(ctx context.Context, session *models.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailNext; err != nil {
		r.FailNext = nil
		return err
	}
	now := time.Now().UTC()
	if existing, ok := r.sessions[session.SessionToken]; ok {
		if now.After(existing.LastActiveAt) {
			existing.LastActiveAt = now
		}
		existing.DeviceID = session.DeviceID
		return nil
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActiveAt.IsZero() {
		session.LastActiveAt = now
	}
	cp := *session
	r.sessions[session.SessionToken] = &cp
	return nil
}

func (r *MemorySessionRepository) GetByToken(ctx context.Context, token string) (*models.UserSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemorySessionRepository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && !s.IsRevoked {
			n++
		}
	}
	return n, nil
}

// Sessions returns all stored sessions.
func (r *MemorySessionRepository) Sessions() []models.UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.UserSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// Seed stores sessions directly.
func (r *MemorySessionRepository) Seed(sessions ...models.UserSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range sessions {
		s := sessions[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		r.sessions[s.SessionToken] = &s
	}
}

type MemoryGeofencingRepository struct {
	mu         sync.RWMutex
	rules      []models.GeofencingRule
	exceptions []models.GeofencingException

	RulesErr error
}

func NewMemoryGeofencingRepository() *MemoryGeofencingRepository {
	return &MemoryGeofencingRepository{}
}

func (r *MemoryGeofencingRepository) ActiveRules(ctx context.Context) ([]models.GeofencingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.RulesErr != nil {
		return nil, r.RulesErr
	}
	var out []models.GeofencingRule
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryGeofencingRepository) ActiveExceptions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.GeofencingException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.GeofencingException
	for _, exc := range r.exceptions {
		if exc.UserID != userID {
			continue
		}
		if exc.ExpiresAt != nil && !exc.ExpiresAt.After(now) {
			continue
		}
		out = append(out, exc)
	}
	return out, nil
}

// SeedRules stores rules directly.
func (r *MemoryGeofencingRepository) SeedRules(rules ...models.GeofencingRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rules...)
}

// SeedExceptions stores exceptions directly.
func (r *MemoryGeofencingRepository) SeedExceptions(exceptions ...models.GeofencingException) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions = append(r.exceptions, exceptions...)
}

type MemoryProfileRepository struct {
	mu        sync.RWMutex
	profiles  map[uuid.UUID]models.Profile
	twoFactor map[uuid.UUID]models.TwoFactor
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles:  make(map[uuid.UUID]models.Profile),
		twoFactor: make(map[uuid.UUID]models.TwoFactor),
	}
}

func (r *MemoryProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryProfileRepository) GetTwoFactor(ctx context.Context, userID uuid.UUID) (*models.TwoFactor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.twoFactor[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// SeedProfile stores a profile row.
func (r *MemoryProfileRepository) SeedProfile(p models.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = p
}

// SeedTwoFactor stores a user_2fa row.
func (r *MemoryProfileRepository) SeedTwoFactor(t models.TwoFactor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.twoFactor[t.UserID] = t
}
