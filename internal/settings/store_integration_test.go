//go:build integration

package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soless-ai/soless/internal/database/dbtest"
)

func TestPostgresStore_SaveLoad(t *testing.T) {
	s := NewPostgresStore(dbtest.Start(t))
	ctx := context.Background()

	var r record
	found, err := s.Load(ctx, KeyPersona, &r)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, KeyPersona, record{Name: "first", Count: 1}))
	require.NoError(t, s.Save(ctx, KeyPersona, record{Name: "second", Count: 2}))

	found, err = s.Load(ctx, KeyPersona, &r)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{Name: "second", Count: 2}, r)
}
