package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
)

type mockDocument struct {
	entity.Document
	Kind    string `db:"kind"`
	Ignored string `db:"-"`
	Note    string
}

func TestExtractDBColumns_PromotesEmbeddedFields(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by",
		"number", "date", "finalized", "finalized_at", "comment", "kind",
	}, cols)
}

func TestStructToMap_EmbeddedAndPointer(t *testing.T) {
	now := time.Now().UTC()
	doc := mockDocument{
		Document: entity.Document{
			BaseDocument: entity.BaseDocument{
				BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3},
				CreatedBy:  "u-1",
			},
			Number:      "INV 01001",
			Finalized:   true,
			FinalizedAt: &now,
		},
		Kind:    "goods",
		Ignored: "x",
	}

	for _, v := range []any{doc, &doc} {
		m := StructToMap(v)
		assert.Equal(t, doc.ID, m["id"])
		assert.Equal(t, 3, m["version"])
		assert.Equal(t, "u-1", m["created_by"])
		assert.Equal(t, "INV 01001", m["number"])
		assert.Equal(t, true, m["finalized"])
		assert.Equal(t, &now, m["finalized_at"])
		assert.Equal(t, "goods", m["kind"])
		assert.NotContains(t, m, "-")
		assert.Len(t, m, 12)
	}
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
