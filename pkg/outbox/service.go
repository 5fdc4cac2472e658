package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// CurrentVersion is stamped on envelopes that do not pick a version.
const CurrentVersion = 1

// DomainEvent is what services hand to Emit. Data is marshalled into the
// envelope as-is.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// seal validates the event and renders the row that will be stored.
func (s *Service) seal(event DomainEvent) (models.OutboxEvent, string, error) {
	if !event.EventType.IsValid() {
		return models.OutboxEvent{}, "", pkgerrors.New(pkgerrors.CodeInternal, "unknown outbox event type "+string(event.EventType))
	}
	if !event.AggregateType.IsValid() {
		return models.OutboxEvent{}, "", pkgerrors.New(pkgerrors.CodeInternal, "unknown outbox aggregate type "+string(event.AggregateType))
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event data")
	}
	env := PayloadEnvelope{
		Version:    orDefault(event.Version, CurrentVersion),
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = s.now()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode envelope")
	}
	return models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}, env.EventID, nil
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// Emit writes the event inside tx, so it commits or rolls back with the
// caller's own writes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "outbox emit needs a transaction")
	}
	row, eventID, err := s.seal(event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store outbox event")
	}

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":       eventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}
