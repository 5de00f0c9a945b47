package postgres

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_CompressesLargeChanges(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	items := make([]map[string]any, 0, 200)
	for i := 0; i < 200; i++ {
		items = append(items, map[string]any{"lineNo": i + 1, "description": "ECG electrodes", "quantity": 2})
	}
	large, err := json.Marshal(map[string]any{"items": items})
	require.NoError(t, err)
	require.Greater(t, len(large), DefaultCompressThreshold)

	var entry AuditEntry
	s.pack(&entry, large)
	assert.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Changes)
	assert.Less(t, len(entry.ChangesCompressed), len(large))

	require.NoError(t, s.unpack(&entry))
	assert.True(t, bytes.Equal(large, entry.Changes))
	assert.Nil(t, entry.ChangesCompressed)
}

func TestAuditService_KeepsSmallChangesPlain(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	small := []byte(`{"status":"Paid"}`)
	var entry AuditEntry
	s.pack(&entry, small)
	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.JSONEq(t, string(small), string(entry.Changes))

	require.NoError(t, s.unpack(&entry))
	assert.JSONEq(t, string(small), string(entry.Changes))
}
