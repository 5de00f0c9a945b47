package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames_Ordered(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])
}

func TestInit_DeclaresStoreTables(t *testing.T) {
	script, err := files.ReadFile("0001_init.sql")
	require.NoError(t, err)
	for _, table := range []string{
		"documents", "document_lines", "document_payments",
		"reg_stock_balances", "reg_stock_movements", "reg_loyalty_points",
		"sys_sequences", "sys_outbox", "sys_outbox_dlq", "sys_audit",
		"cat_products", "cat_counterparties",
	} {
		assert.Contains(t, string(script), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, string(script), "documents_type_number_key")
}
