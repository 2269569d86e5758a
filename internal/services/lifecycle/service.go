// Package lifecycle is the only writer of repair status. It validates transitions,
// applies them through the store, and serves the staff and public read views.
package lifecycle

import (
	"context"
	"time"

	"github.com/BearBump/RepairBox/internal/cache"
	"github.com/BearBump/RepairBox/internal/models"
	"github.com/BearBump/RepairBox/internal/trackingcode"
)

const DefaultMaxCodeAttempts = 10

type Repository interface {
	CreateRepair(ctx context.Context, in models.RepairCreateInput, trackingCode string) (*models.Snapshot, error)
	TrackingCodeExists(ctx context.Context, code string) (bool, error)
	GetRepairDetail(ctx context.Context, id string) (*models.RepairDetail, error)
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	GetSnapshotByTrackingCode(ctx context.Context, code string) (*models.Snapshot, error)
	ListLedger(ctx context.Context, repairID string) ([]*models.LedgerEntry, error)
	ApplyTransition(ctx context.Context, upd models.TransitionUpdate) (*models.Repair, *models.LedgerEntry, error)
	ListRepairs(ctx context.Context, f models.RepairFilter) ([]*models.RepairListItem, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}

// Publisher is the outbound side of the status-changed event.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Config struct {
	// StatusChangedTopic is where status-changed events go. Empty disables publishing.
	StatusChangedTopic string
	MaxCodeAttempts    int
	// TrackingTTL is how long a public tracking view stays cached. Zero disables the cache.
	TrackingTTL time.Duration
}

type Service struct {
	repo  Repository
	codes *trackingcode.Generator
	pub   Publisher
	cache cache.BytesCache

	topic       string
	maxAttempts int
	trackingTTL time.Duration

	now func() time.Time
}

// New wires the service. pub and c may be nil.
func New(repo Repository, codes *trackingcode.Generator, pub Publisher, c cache.BytesCache, cfg Config) *Service {
	if codes == nil {
		codes = trackingcode.New("", nil)
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	return &Service{
		repo:        repo,
		codes:       codes,
		pub:         pub,
		cache:       c,
		topic:       cfg.StatusChangedTopic,
		maxAttempts: cfg.MaxCodeAttempts,
		trackingTTL: cfg.TrackingTTL,
		now:         time.Now,
	}
}

func (s *Service) TrackingCodes() *trackingcode.Generator {
	return s.codes
}
