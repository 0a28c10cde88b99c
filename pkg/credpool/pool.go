package credpool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
)

// Lease is a credential handed to one request. The identity travels
// through the request's own call chain, so outcome reporting always hits
// the credential this request actually used, regardless of what other
// concurrent requests acquire in the meantime.
type Lease interface {
	ID() string
	Platform() string
	// Secret returns the decrypted session secret. Valid only for the
	// lifetime of the request; never log it.
	Secret() string

	ReportSuccess(ctx context.Context)
	ReportError(ctx context.Context, msg string)
	ReportCooldown(ctx context.Context, minutes int, msg string)
	ReportExpired(ctx context.Context, msg string)
}

// Pool selects credentials for scrape requests and tracks their health.
// A nil store degrades every acquisition to "no credential available".
type Pool struct {
	store  Store
	cipher *SecretCipher
	cfg    config.CredentialsConfig
	log    logger.Logger
	clock  func() time.Time
}

// New creates a credential pool. store may be nil when no relational
// backend is configured.
func New(store Store, cipher *SecretCipher, cfg config.CredentialsConfig, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		store:  store,
		cipher: cipher,
		cfg:    cfg,
		log:    log,
		clock:  time.Now,
	}
}

// AcquireRotating picks the next credential for a platform. Selection
// order: healthy least-recently-used with the lowest use count, then a
// lapsed cooldown reclaimed to healthy, then any cooling-down credential
// reclaimed as a last resort. Returns (nil, nil) when the pool is empty,
// fully disabled, or the backend is absent.
func (p *Pool) AcquireRotating(ctx context.Context, platform string) (Lease, error) {
	if p.store == nil {
		return nil, nil
	}

	creds, err := p.store.ListByPlatform(ctx, platform)
	if err != nil {
		// Backend faults degrade to "no credential", never to a caller
		// visible error.
		p.log.WithError(err).WithField("platform", platform).Warn("credential store unavailable")
		return nil, nil
	}

	now := p.clock()
	selected := pick(creds, now)
	if selected == nil {
		return nil, nil
	}

	secret, err := p.cipher.Decrypt(selected.EncryptedSecret)
	if err != nil {
		p.log.WithError(err).WithFields(map[string]interface{}{
			"platform":      platform,
			"credential_id": selected.ID,
		}).Error("failed to decrypt credential secret")
		return nil, nil
	}

	if err := p.store.MarkSelected(ctx, selected.ID, now); err != nil {
		p.log.WithError(err).WithField("credential_id", selected.ID).Warn("failed to record credential selection")
	}

	p.log.DebugWithFields("credential acquired", map[string]interface{}{
		"platform":      platform,
		"credential_id": selected.ID,
	})
	return &lease{pool: p, id: selected.ID, platform: platform, secret: secret}, nil
}

// pick applies the three-tier selection order. Input is ordered by
// last-used ascending already; ties break on use count.
func pick(creds []Credential, now time.Time) *Credential {
	var healthy, lapsed, lastResort []*Credential
	for i := range creds {
		c := &creds[i]
		if !c.Enabled {
			continue
		}
		switch {
		case c.InRotation(now):
			healthy = append(healthy, c)
		case c.CooldownLapsed(now):
			lapsed = append(lapsed, c)
		case c.Status == StatusCooldown:
			lastResort = append(lastResort, c)
		}
		// expired and disabled stay out of rotation entirely
	}

	for _, tier := range [][]*Credential{healthy, lapsed, lastResort} {
		if len(tier) == 0 {
			continue
		}
		best := tier[0]
		for _, c := range tier[1:] {
			if lessUsed(c, best) {
				best = c
			}
		}
		return best
	}
	return nil
}

// lessUsed orders by last-used (never-used first), then use count.
func lessUsed(a, b *Credential) bool {
	switch {
	case a.LastUsedAt == nil && b.LastUsedAt != nil:
		return true
	case a.LastUsedAt != nil && b.LastUsedAt == nil:
		return false
	case a.LastUsedAt != nil && b.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt):
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
	return a.UseCount < b.UseCount
}

// lease is the concrete Lease carried through one request.
type lease struct {
	pool     *Pool
	id       string
	platform string
	secret   string
}

func (l *lease) ID() string       { return l.id }
func (l *lease) Platform() string { return l.platform }
func (l *lease) Secret() string   { return l.secret }

func (l *lease) ReportSuccess(ctx context.Context) {
	if err := l.pool.store.IncrementSuccess(ctx, l.id); err != nil {
		l.pool.log.WithError(err).WithField("credential_id", l.id).Warn("failed to record credential success")
	}
}

// ReportError bumps the error counter and pushes the credential into
// cooldown on every Nth cumulative error, so one transient failure does
// not flap an otherwise working session.
func (l *lease) ReportError(ctx context.Context, msg string) {
	count, err := l.pool.store.IncrementError(ctx, l.id)
	if err != nil {
		l.pool.log.WithError(err).WithField("credential_id", l.id).Warn("failed to record credential error")
		return
	}

	threshold := l.pool.cfg.ErrorCooldownThreshold
	if threshold > 0 && count%int64(threshold) == 0 {
		l.ReportCooldown(ctx, l.pool.cfg.CooldownMinutes, msg)
		return
	}
	l.pool.log.DebugWithFields("credential error recorded", map[string]interface{}{
		"credential_id": l.id,
		"error_count":   count,
		"message":       msg,
	})
}

func (l *lease) ReportCooldown(ctx context.Context, minutes int, msg string) {
	if minutes <= 0 {
		minutes = l.pool.cfg.CooldownMinutes
	}
	until := l.pool.clock().Add(time.Duration(minutes) * time.Minute)
	if err := l.pool.store.SetCooldown(ctx, l.id, until); err != nil {
		l.pool.log.WithError(err).WithField("credential_id", l.id).Warn("failed to set credential cooldown")
		return
	}
	l.pool.log.WarnWithFields("credential placed in cooldown", map[string]interface{}{
		"credential_id": l.id,
		"platform":      l.platform,
		"until":         until,
		"message":       msg,
	})
}

func (l *lease) ReportExpired(ctx context.Context, msg string) {
	if err := l.pool.store.SetStatus(ctx, l.id, StatusExpired); err != nil {
		l.pool.log.WithError(err).WithField("credential_id", l.id).Warn("failed to expire credential")
		return
	}
	l.pool.log.WarnWithFields("credential expired", map[string]interface{}{
		"credential_id": l.id,
		"platform":      l.platform,
		"message":       msg,
	})
}

// ErrNoStore is returned by administrative operations when no relational
// backend is configured. Rotation never returns it; acquisition degrades
// to "no credential available" instead.
var ErrNoStore = errNoStore{}

type errNoStore struct{}

func (errNoStore) Error() string { return "credential store not configured" }

// Add encrypts and stores a new credential. Administrative.
func (p *Pool) Add(ctx context.Context, platform, label, secret string) (*Credential, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	encrypted, err := p.cipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}
	cred := &Credential{
		ID:              uuid.NewString(),
		Platform:        platform,
		Label:           label,
		EncryptedSecret: encrypted,
		Status:          StatusHealthy,
		Enabled:         true,
	}
	if err := p.store.Create(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// List returns all credentials for a platform. Administrative.
func (p *Pool) List(ctx context.Context, platform string) ([]Credential, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	return p.store.ListByPlatform(ctx, platform)
}

// Delete removes a credential. Administrative.
func (p *Pool) Delete(ctx context.Context, id string) error {
	if p.store == nil {
		return ErrNoStore
	}
	return p.store.Delete(ctx, id)
}

// SetEnabled flips a credential's enabled flag. Administrative.
func (p *Pool) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if p.store == nil {
		return ErrNoStore
	}
	cred, err := p.store.Get(ctx, id)
	if err != nil {
		return err
	}
	cred.Enabled = enabled
	return p.store.Update(ctx, cred)
}

// Stats returns aggregated pool state for a platform. Administrative.
func (p *Pool) Stats(ctx context.Context, platform string) (*PoolStats, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	return p.store.Stats(ctx, platform)
}

// ProbeFunc checks whether a decrypted secret still authenticates.
type ProbeFunc func(ctx context.Context, platform, secret string) error

// HealthTest decrypts one credential and runs the probe against it,
// recording the outcome like a normal use. Administrative.
func (p *Pool) HealthTest(ctx context.Context, id string, probe ProbeFunc) error {
	if p.store == nil {
		return ErrNoStore
	}
	cred, err := p.store.Get(ctx, id)
	if err != nil {
		return err
	}
	secret, err := p.cipher.Decrypt(cred.EncryptedSecret)
	if err != nil {
		return err
	}

	l := &lease{pool: p, id: cred.ID, platform: cred.Platform, secret: secret}
	if err := probe(ctx, cred.Platform, secret); err != nil {
		l.ReportError(ctx, err.Error())
		return err
	}
	l.ReportSuccess(ctx)
	return nil
}
