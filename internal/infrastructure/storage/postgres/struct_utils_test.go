package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fieldops/internal/core/id"
)

type auditStamp struct {
	CreatedAt time.Time `db:"created_at"`
}

type sampleRow struct {
	auditStamp
	ID      id.ID  `db:"id"`
	Name    string `db:"name"`
	Ignored string `db:"-"`
	Plain   string
}

func TestExtractDBColumns_FlattensEmbedded(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()

	assert.Equal(t, []string{"created_at", "id", "name"}, cols)
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	row := sampleRow{auditStamp: auditStamp{CreatedAt: now}, ID: id.New(), Name: "Mounting", Ignored: "x"}

	m := StructToMap(&row)

	assert.Len(t, m, 3)
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, "Mounting", m["name"])
	assert.Equal(t, now, m["created_at"])
	assert.Nil(t, StructToMap(42))
}

func TestSelectMap(t *testing.T) {
	row := sampleRow{ID: id.New(), Name: "Piping"}

	m := SelectMap(row, []string{"id", "missing"})

	assert.Equal(t, map[string]any{"id": row.ID}, m)
}
