package edgetill

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edgetill/edgetill/internal/audit"
	"github.com/edgetill/edgetill/permission"
	"github.com/edgetill/edgetill/session"
	"github.com/edgetill/edgetill/store"
)

// Builder assembles an [Engine]. Configure it with the With* methods and
// call [Builder.Build] exactly once.
type Builder struct {
	config Config

	rules    map[Role][]permission.Rule
	vault    session.Vault
	redis    *redis.Client
	st       *store.Store
	storeDSN string
	deviceID string

	identity  IdentityProvider
	authority RoleAuthority
	publisher LedgerPublisher
	probe     ConnectivityProbe
	auditSink AuditSink
	logger    *zerolog.Logger

	built bool
}

// New creates a [Builder] with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRules replaces the static role table. When never called, the table
// from [DefaultRules] is used.
func (b *Builder) WithRules(rules map[Role][]permission.Rule) *Builder {
	b.rules = rules
	return b
}

// WithVault injects a custom session vault, overriding the file vault
// built from [SessionConfig].
func (b *Builder) WithVault(v session.Vault) *Builder {
	b.vault = v
	return b
}

// WithRedis supplies a redis client; the session vault is then
// redis-backed instead of file-backed.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStore injects an already-open durable store. The engine will not
// close it.
func (b *Builder) WithStore(s *store.Store) *Builder {
	b.st = s
	return b
}

// WithStorePath opens (and owns) the sqlite store at the given path.
func (b *Builder) WithStorePath(path string) *Builder {
	b.storeDSN = path
	return b
}

// WithDeviceID pins the device identity. A random UUID is generated when
// never called.
func (b *Builder) WithDeviceID(id string) *Builder {
	b.deviceID = id
	return b
}

// WithIdentityProvider supplies the external login/refresh authority.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithAuthority supplies the external role/permission authority.
func (b *Builder) WithAuthority(a RoleAuthority) *Builder {
	b.authority = a
	return b
}

// WithPublisher supplies the external ledger publisher.
func (b *Builder) WithPublisher(p LedgerPublisher) *Builder {
	b.publisher = p
	return b
}

// WithConnectivity supplies the connectivity probe.
func (b *Builder) WithConnectivity(p ConnectivityProbe) *Builder {
	b.probe = p
	return b
}

// WithAuditSink supplies the audit sink; events only flow when
// [AuditConfig].Enabled is also set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger supplies the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

// DefaultRules is the standard point-of-sale role table. ROOT holds the
// universal wildcard; PARTNER may only update or delete products and
// orders it owns.
func DefaultRules() map[Role][]permission.Rule {
	return map[Role][]permission.Rule{
		RoleRoot: {
			{Resource: permission.Wildcard},
		},
		RoleAdmin: {
			{Resource: "products", Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
			{Resource: "orders", Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
			{Resource: "settings", Actions: []Action{ActionRead, ActionUpdate}},
			{Resource: "devices", Actions: []Action{ActionCreate, ActionRead, ActionUpdate}},
			{Resource: "reports", Actions: []Action{ActionRead}},
		},
		RolePartner: {
			{Resource: "products", Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}, RequireOwner: true},
			{Resource: "orders", Actions: []Action{ActionCreate, ActionRead, ActionUpdate}, RequireOwner: true},
			{Resource: "reports", Actions: []Action{ActionRead}},
		},
		RoleOperator: {
			{Resource: "products", Actions: []Action{ActionRead}},
			{Resource: "orders", Actions: []Action{ActionCreate, ActionRead}},
		},
	}
}

// Build validates dependencies, opens the durable store, freezes the
// permission table, recovers interrupted queue items, and starts the
// background refresh and reconciliation loops.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.identity == nil {
		return nil, errors.New("identity provider required")
	}
	if b.authority == nil {
		return nil, errors.New("role authority required")
	}
	if b.publisher == nil {
		return nil, errors.New("ledger publisher required")
	}
	if b.probe == nil {
		return nil, errors.New("connectivity probe required")
	}
	if b.st == nil && b.storeDSN == "" {
		return nil, errors.New("store (or store path) required")
	}

	deviceID := b.deviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	// -------- SESSION VAULT --------
	vault := b.vault
	if vault == nil {
		var err error
		switch {
		case b.redis != nil:
			vault, err = session.NewRedisVault(b.redis, cfg.Session.RedisPrefix, deviceID, cfg.Session.VaultKey)
		default:
			vault, err = session.NewFileVault(cfg.Session.VaultPath, cfg.Session.VaultKey)
		}
		if err != nil {
			return nil, err
		}
	}

	// -------- PERMISSION TABLE --------
	rules := b.rules
	if rules == nil {
		rules = DefaultRules()
	}
	table := permission.NewTable()
	for role, ruleSet := range rules {
		for _, rule := range ruleSet {
			if err := table.Grant(role, rule); err != nil {
				return nil, err
			}
		}
	}
	table.Freeze()

	// -------- DURABLE STORE --------
	st := b.st
	ownsStore := false
	if st == nil {
		opened, err := store.Open(ctx, b.storeDSN)
		if err != nil {
			return nil, err
		}
		st = opened
		ownsStore = true
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	engine := &Engine{
		config:    cfg,
		table:     table,
		vault:     vault,
		store:     st,
		ownsStore: ownsStore,
		identity:  b.identity,
		authority: b.authority,
		publisher: b.publisher,
		probe:     b.probe,
		deviceID:  deviceID,
		log:       logger,
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// Items left syncing by a crash revert to pending; idempotent
	// publish makes the retry safe.
	recovered, err := st.RecoverInterrupted(ctx)
	if err != nil {
		engine.Close()
		return nil, err
	}
	if recovered > 0 {
		for i := int64(0); i < recovered; i++ {
			engine.metricInc(MetricQueueRecovered)
		}
		engine.log.Info().Int64("items", recovered).Msg("reverted interrupted queue items to pending")
		engine.emitAudit(ctx, auditEventQueueRecovered, true, "", "", nil, nil)
	}

	engine.startBackground()

	b.built = true

	return engine, nil
}
