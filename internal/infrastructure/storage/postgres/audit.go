package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/domain/events"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionStatusChange AuditAction = "status_change"
)

// CompressionAlgo specifies the compression algorithm used for stored changes.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 10 * 1024

// AuditEntry is a row of sys_audit.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	OrderID           *id.ID          `db:"order_id" json:"orderId,omitempty"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            AuditAction     `db:"action" json:"action"`
	UserID            string          `db:"user_id" json:"userId"`
	Changes           json.RawMessage `db:"changes" json:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// TransitionChanges is the changes payload of a status_change entry.
type TransitionChanges struct {
	From       string `json:"from"`
	To         string `json:"to"`
	EntityName string `json:"entityName,omitempty"`
}

// AuditService writes and reads the status transition log.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates an audit service with zstd compression above 10KB.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Close releases the zstd decoder.
func (s *AuditService) Close() {
	s.decoder.Close()
}

// RecordTransition stores a status change. Implements notification.AuditLog.
func (s *AuditService) RecordTransition(ctx context.Context, ev events.StatusChanged) error {
	changes, err := json.Marshal(TransitionChanges{From: ev.From, To: ev.To, EntityName: ev.EntityName})
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	entry := AuditEntry{
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Action:     AuditActionStatusChange,
		UserID:     ev.Actor,
		Changes:    changes,
		CreatedAt:  ev.At,
	}
	if !id.IsNil(ev.OrderID) {
		entry.OrderID = id.Ptr(ev.OrderID)
	}
	return s.Log(ctx, entry)
}

// Log inserts an audit entry, compressing large payloads.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = security.Actor(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	query, args, err := s.insertQuery(entry).ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *AuditService) insertQuery(entry AuditEntry) sq.InsertBuilder {
	return sq.Insert("sys_audit").
		Columns("id", "order_id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(entry.ID, entry.OrderID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
			entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt).
		PlaceholderFormat(sq.Dollar)
}

// GetEntityHistory returns the newest entries for an entity, decompressed.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query, args, err := historyQuery(entityID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = decompressed
			e.ChangesCompressed = nil
		}
	}
	return entries, nil
}

func historyQuery(entityID id.ID, limit int) sq.SelectBuilder {
	return sq.Select("id", "order_id", "entity_type", "entity_id", "action", "user_id",
		"changes", "changes_compressed", "compression_algo", "created_at").
		From("sys_audit").
		Where(sq.Eq{"entity_id": entityID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar)
}
