package postgres

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/core/id"
)

func TestHistoryQuery(t *testing.T) {
	entityID := id.New()

	query, args, err := historyQuery(entityID, 50).ToSql()

	require.NoError(t, err)
	assert.Contains(t, query, "FROM sys_audit WHERE entity_id = $1")
	assert.Contains(t, query, "ORDER BY created_at DESC LIMIT 50")
	// squirrel binds driver.Valuer arguments of Eq through their Value.
	assert.Equal(t, []any{entityID.String()}, args)
}

func TestInsertQuery_ColumnOrder(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)
	defer s.Close()
	entry := AuditEntry{
		ID: id.New(), EntityType: "flat", EntityID: id.New(),
		Action: AuditActionStatusChange, UserID: "u-1", CompressionAlgo: CompressionNone,
	}

	query, args, err := s.insertQuery(entry).ToSql()

	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO sys_audit (id,order_id,entity_type,entity_id,action,user_id,changes,changes_compressed,compression_algo,created_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)", query)
	require.Len(t, args, 10)
	assert.Equal(t, "u-1", args[5])
	assert.Equal(t, CompressionNone, args[8])
}

func TestAuditCompression_RoundTrip(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)
	defer s.Close()

	payload, err := json.Marshal(TransitionChanges{From: "step3", To: "step4", EntityName: "Mounting"})
	require.NoError(t, err)

	packed := s.encoder.EncodeAll(payload, nil)
	unpacked, err := s.decoder.DecodeAll(packed, nil)

	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(unpacked))
}

func TestMarshalResponse(t *testing.T) {
	b, err := marshalResponse(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = marshalResponse([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = marshalResponse(map[string]int{"created": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"created":1}`, string(b))

	_, err = marshalResponse(make(chan int))
	assert.Error(t, err)
}

func TestReplayDefaults(t *testing.T) {
	assert.Equal(t, http.StatusOK, normalizeReplayStatus(0))
	assert.Equal(t, http.StatusAccepted, normalizeReplayStatus(http.StatusAccepted))
	assert.Equal(t, "application/json", normalizeReplayContentType(""))
	assert.Equal(t, "text/plain", normalizeReplayContentType("text/plain"))
}
