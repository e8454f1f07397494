package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	my, err := Statements("mysql")
	require.NoError(t, err)
	require.Len(t, my, 1)
	assert.True(t, strings.HasPrefix(my[0], "CREATE TABLE IF NOT EXISTS leads"))

	ch, err := Statements("clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 2)
	assert.Contains(t, ch[1], "leadsite.lead_events")
}
