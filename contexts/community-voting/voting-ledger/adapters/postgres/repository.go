package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
	"voteledger/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const metaRowID = 1

// Repository persists the ledger through gorm. It targets Postgres and also
// runs on SQLite, where row locking clauses are dropped by the dialect.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the ledger tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&metaModel{},
		&entityModel{},
		&entityVoteModel{},
		&userVoteModel{},
		&outboxModel{},
		&eventDedupModel{},
	)
}

func (r *Repository) GetMeta(ctx context.Context) (entities.LedgerMeta, error) {
	var row metaModel
	err := r.db.WithContext(ctx).
		Where("id = ?", metaRowID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.LedgerMeta{}, nil
		}
		return entities.LedgerMeta{}, r.logError("ledger_repo_get_meta_failed", err)
	}
	return row.toEntity(), nil
}

func (r *Repository) InitializeLedger(ctx context.Context, meta entities.LedgerMeta, event ports.EventEnvelope) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockMeta(tx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(row.Admin) != "" {
			return domainerrors.ErrAlreadyInitialized
		}
		if err := tx.Where("1 = 1").Delete(&entityModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&entityVoteModel{}).Error; err != nil {
			return err
		}
		initializedAt := meta.InitializedAt.UTC()
		if err := tx.Model(&metaModel{}).
			Where("id = ?", metaRowID).
			Updates(map[string]any{
				"admin":          strings.TrimSpace(meta.Admin),
				"total_entities": uint64(0),
				"initialized_at": initializedAt,
				"updated_at":     initializedAt,
			}).Error; err != nil {
			return err
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return r.logError("ledger_repo_initialize_failed", err, "admin", strings.TrimSpace(meta.Admin))
	}
	return nil
}

func (r *Repository) CreateEntity(
	ctx context.Context,
	entity entities.Entity,
	event ports.EventEnvelope,
) (entities.Entity, error) {
	var created entities.Entity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta, err := lockMeta(tx)
		if err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&entityModel{}).
			Where("name = ?", entity.Name).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domainerrors.ErrAlreadyExists
		}

		row := entityModel{
			Name:         entity.Name,
			Creator:      strings.TrimSpace(entity.Creator),
			Sequence:     meta.NextSequence + 1,
			RegisteredAt: entity.RegisteredAt.UTC(),
		}
		if row.RegisteredAt.IsZero() {
			row.RegisteredAt = time.Now().UTC()
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		counter := entityVoteModel{EntityName: row.Name, VoteCount: 0}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_name"}},
			DoUpdates: clause.Assignments(map[string]any{"vote_count": uint64(0)}),
		}).Create(&counter).Error; err != nil {
			return err
		}
		if err := tx.Model(&metaModel{}).
			Where("id = ?", metaRowID).
			Updates(map[string]any{
				"total_entities": meta.TotalEntities + 1,
				"next_sequence":  row.Sequence,
				"updated_at":     row.RegisteredAt,
			}).Error; err != nil {
			return err
		}
		if err := appendOutbox(tx, event); err != nil {
			return err
		}
		created = row.toEntity(0)
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Entity{}, err
		}
		if isDuplicateKey(err) {
			return entities.Entity{}, domainerrors.ErrAlreadyExists
		}
		return entities.Entity{}, r.logError("ledger_repo_create_entity_failed", err,
			"name", entity.Name,
			"creator", strings.TrimSpace(entity.Creator),
		)
	}
	return created, nil
}

func (r *Repository) RecordVote(
	ctx context.Context,
	record entities.VoteRecord,
	event ports.EventEnvelope,
) (entities.Entity, error) {
	voter := strings.TrimSpace(record.Voter)
	var updated entities.Entity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row entityModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", record.EntityName).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotFound
			}
			return err
		}

		var voted int64
		if err := tx.Model(&userVoteModel{}).
			Where("voter = ? AND entity_name = ?", voter, record.EntityName).
			Count(&voted).Error; err != nil {
			return err
		}
		if voted > 0 {
			return domainerrors.ErrAlreadyVoted
		}

		var position int64
		if err := tx.Model(&userVoteModel{}).
			Where("voter = ?", voter).
			Count(&position).Error; err != nil {
			return err
		}
		votedAt := record.VotedAt.UTC()
		if votedAt.IsZero() {
			votedAt = time.Now().UTC()
		}
		if err := tx.Create(&userVoteModel{
			Voter:      voter,
			EntityName: record.EntityName,
			Position:   uint64(position) + 1,
			VotedAt:    votedAt,
		}).Error; err != nil {
			return err
		}

		result := tx.Model(&entityVoteModel{}).
			Where("entity_name = ?", record.EntityName).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&entityVoteModel{EntityName: record.EntityName, VoteCount: 1}).Error; err != nil {
				return err
			}
		}

		var counter entityVoteModel
		if err := tx.Where("entity_name = ?", record.EntityName).First(&counter).Error; err != nil {
			return err
		}
		if err := appendOutbox(tx, event); err != nil {
			return err
		}
		updated = row.toEntity(counter.VoteCount)
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Entity{}, err
		}
		if isDuplicateKey(err) {
			return entities.Entity{}, domainerrors.ErrAlreadyVoted
		}
		return entities.Entity{}, r.logError("ledger_repo_record_vote_failed", err,
			"name", record.EntityName,
			"voter", voter,
		)
	}
	return updated, nil
}

func (r *Repository) DeleteEntity(ctx context.Context, name string, event ports.EventEnvelope) (entities.Entity, error) {
	var removed entities.Entity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta, err := lockMeta(tx)
		if err != nil {
			return err
		}
		var row entityModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotFound
			}
			return err
		}
		var counter entityVoteModel
		if err := tx.Where("entity_name = ?", name).
			Limit(1).
			Find(&counter).Error; err != nil {
			return err
		}

		if err := tx.Where("name = ?", name).Delete(&entityModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_name = ?", name).Delete(&entityVoteModel{}).Error; err != nil {
			return err
		}
		total := meta.TotalEntities
		if total > 0 {
			total--
		}
		if err := tx.Model(&metaModel{}).
			Where("id = ?", metaRowID).
			Updates(map[string]any{
				"total_entities": total,
				"updated_at":     event.OccurredAt.UTC(),
			}).Error; err != nil {
			return err
		}
		if err := appendOutbox(tx, event); err != nil {
			return err
		}
		removed = row.toEntity(counter.VoteCount)
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Entity{}, err
		}
		return entities.Entity{}, r.logError("ledger_repo_delete_entity_failed", err, "name", name)
	}
	return removed, nil
}

func (r *Repository) GetEntity(ctx context.Context, name string) (entities.Entity, error) {
	var rows []entityWithVotesRow
	if err := r.entitiesWithVotes(ctx).
		Where("e.name = ?", name).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return entities.Entity{}, r.logError("ledger_repo_get_entity_failed", err, "name", name)
	}
	if len(rows) == 0 {
		return entities.Entity{}, domainerrors.ErrNotFound
	}
	return rows[0].toEntity(), nil
}

func (r *Repository) ListEntities(ctx context.Context) ([]entities.Entity, error) {
	var rows []entityWithVotesRow
	if err := r.entitiesWithVotes(ctx).
		Order("e.sequence ASC").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_entities_failed", err)
	}
	items := make([]entities.Entity, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListUserVotes(ctx context.Context, voter string) ([]entities.VoteRecord, error) {
	var rows []userVoteModel
	if err := r.db.WithContext(ctx).
		Where("voter = ?", strings.TrimSpace(voter)).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_user_votes_failed", err, "voter", strings.TrimSpace(voter))
	}
	items := make([]entities.VoteRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.VoteRecord{
			Voter:      row.Voter,
			EntityName: row.EntityName,
			VotedAt:    row.VotedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) HasVoted(ctx context.Context, voter string, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&userVoteModel{}).
		Where("voter = ? AND entity_name = ?", strings.TrimSpace(voter), name).
		Count(&count).Error; err != nil {
		return false, r.logError("ledger_repo_has_voted_failed", err,
			"voter", strings.TrimSpace(voter),
			"name", name,
		)
	}
	return count > 0, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Order("position ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("ledger_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("ledger_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if !existing.ExpiresAt.IsZero() && row.ProcessedAt.After(existing.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Model(&eventDedupModel{}).
			Where("event_id = ?", row.EventID).
			Updates(map[string]any{
				"payload_hash": row.PayloadHash,
				"expires_at":   row.ExpiresAt,
				"processed_at": row.ProcessedAt,
			}).Error; err != nil {
			return false, r.logError("ledger_repo_reserve_event_refresh_failed", err,
				"event_id", strings.TrimSpace(eventID),
			)
		}
		return false, nil
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) ReleaseEvent(ctx context.Context, eventID string) error {
	err := r.db.WithContext(ctx).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Delete(&eventDedupModel{}).
		Error
	if err != nil {
		return r.logError("ledger_repo_release_event_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	return nil
}

func (r *Repository) entitiesWithVotes(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("ledger_entities AS e").
		Select("e.name, e.creator, e.sequence, e.registered_at, COALESCE(v.vote_count, 0) AS vote_count").
		Joins("LEFT JOIN ledger_entity_votes AS v ON v.entity_name = e.name")
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "community-voting/voting-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

// lockMeta loads the singleton meta row, creating it on first use, and holds
// it for the rest of the transaction so structural writes serialize.
func lockMeta(tx *gorm.DB) (metaModel, error) {
	seed := metaModel{ID: metaRowID, UpdatedAt: time.Now().UTC()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return metaModel{}, err
	}
	var row metaModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", metaRowID).
		First(&row).Error; err != nil {
		return metaModel{}, err
	}
	return row, nil
}

func appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	var position int64
	if err := tx.Model(&outboxModel{}).Count(&position).Error; err != nil {
		return err
	}
	row.Position = uint64(position) + 1

	create := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return create.Error
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := tx.Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

type metaModel struct {
	ID            int        `gorm:"column:id;primaryKey;autoIncrement:false"`
	Admin         string     `gorm:"column:admin"`
	TotalEntities uint64     `gorm:"column:total_entities"`
	NextSequence  uint64     `gorm:"column:next_sequence"`
	InitializedAt *time.Time `gorm:"column:initialized_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (metaModel) TableName() string {
	return "ledger_meta"
}

func (m metaModel) toEntity() entities.LedgerMeta {
	meta := entities.LedgerMeta{
		Admin:         strings.TrimSpace(m.Admin),
		TotalEntities: m.TotalEntities,
	}
	if m.InitializedAt != nil {
		meta.InitializedAt = m.InitializedAt.UTC()
	}
	return meta
}

type entityModel struct {
	Name         string    `gorm:"column:name;primaryKey"`
	Creator      string    `gorm:"column:creator"`
	Sequence     uint64    `gorm:"column:sequence;uniqueIndex"`
	RegisteredAt time.Time `gorm:"column:registered_at"`
}

func (entityModel) TableName() string {
	return "ledger_entities"
}

func (m entityModel) toEntity(votes uint64) entities.Entity {
	return entities.Entity{
		Name:         m.Name,
		VoteCount:    votes,
		Creator:      m.Creator,
		Sequence:     m.Sequence,
		RegisteredAt: m.RegisteredAt.UTC(),
	}
}

type entityVoteModel struct {
	EntityName string `gorm:"column:entity_name;primaryKey"`
	VoteCount  uint64 `gorm:"column:vote_count"`
}

func (entityVoteModel) TableName() string {
	return "ledger_entity_votes"
}

type userVoteModel struct {
	Voter      string    `gorm:"column:voter;primaryKey"`
	EntityName string    `gorm:"column:entity_name;primaryKey"`
	Position   uint64    `gorm:"column:position"`
	VotedAt    time.Time `gorm:"column:voted_at"`
}

func (userVoteModel) TableName() string {
	return "ledger_user_votes"
}

type entityWithVotesRow struct {
	Name         string    `gorm:"column:name"`
	Creator      string    `gorm:"column:creator"`
	Sequence     uint64    `gorm:"column:sequence"`
	RegisteredAt time.Time `gorm:"column:registered_at"`
	VoteCount    uint64    `gorm:"column:vote_count"`
}

func (m entityWithVotesRow) toEntity() entities.Entity {
	return entities.Entity{
		Name:         m.Name,
		VoteCount:    m.VoteCount,
		Creator:      m.Creator,
		Sequence:     m.Sequence,
		RegisteredAt: m.RegisteredAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	Position     uint64     `gorm:"column:position"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "ledger_event_dedup"
}

func isDomainError(err error) bool {
	return errors.Is(err, domainerrors.ErrAlreadyExists) ||
		errors.Is(err, domainerrors.ErrNotFound) ||
		errors.Is(err, domainerrors.ErrAlreadyVoted) ||
		errors.Is(err, domainerrors.ErrAlreadyInitialized) ||
		errors.Is(err, domainerrors.ErrConflict)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.LedgerRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
