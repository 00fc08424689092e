package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// Store is the in-memory adapter used by tests and the local runtime.
type Store struct {
	mu sync.RWMutex

	schedules      map[uint64]entities.Schedule
	claims         map[string]entities.ClaimRecord
	outbox         map[string]outboxRecord
	nextScheduleID uint64
}

func NewStore(seed []entities.Schedule) *Store {
	schedules := make(map[uint64]entities.Schedule, len(seed))
	next := uint64(1)
	for _, schedule := range seed {
		schedules[schedule.ID] = schedule
		if schedule.ID >= next {
			next = schedule.ID + 1
		}
	}
	return &Store{
		schedules:      schedules,
		claims:         make(map[string]entities.ClaimRecord),
		outbox:         make(map[string]outboxRecord),
		nextScheduleID: next,
	}
}

func (s *Store) CreateSchedule(_ context.Context, schedule entities.Schedule) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule.ID = s.nextScheduleID
	s.nextScheduleID++
	s.schedules[schedule.ID] = schedule
	return schedule.ID, nil
}

func (s *Store) GetSchedule(_ context.Context, scheduleID uint64) (entities.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, exists := s.schedules[scheduleID]
	if !exists {
		return entities.Schedule{}, domainerrors.ErrScheduleNotFound
	}
	return schedule, nil
}

func (s *Store) ListSchedules(_ context.Context) ([]entities.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules := make([]entities.Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		schedules = append(schedules, schedule)
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].ID < schedules[j].ID
	})
	return schedules, nil
}

func (s *Store) UpdateSchedule(_ context.Context, schedule entities.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[schedule.ID]; !exists {
		return domainerrors.ErrScheduleNotFound
	}
	s.schedules[schedule.ID] = schedule
	return nil
}

func (s *Store) GetClaimRecord(_ context.Context, recipient string) (entities.ClaimRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.claims[strings.TrimSpace(recipient)]
	if !exists {
		return entities.ClaimRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) SaveClaimRecord(_ context.Context, record entities.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[record.Recipient] = record
	return nil
}

func (s *Store) ListClaimRecords(_ context.Context) ([]entities.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]entities.ClaimRecord, 0, len(s.claims))
	for _, record := range s.claims {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Recipient < records[j].Recipient
	})
	return records, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrOutboxMessageNotFound
	}
	timestamp := publishedAt.UTC()
	row.PublishedAt = &timestamp
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.ScheduleRepository = (*Store)(nil)
var _ ports.ClaimRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
