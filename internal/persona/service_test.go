package persona

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soless-ai/soless/internal/settings"
)

type failingRecords struct {
	settings.RecordStore
	failSave bool
}

func (f *failingRecords) Save(ctx context.Context, key string, v any) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.RecordStore.Save(ctx, key, v)
}

func newRecords(t *testing.T) *settings.FileStore {
	t.Helper()
	s, err := settings.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewService_SeedsDefaults(t *testing.T) {
	records := newRecords(t)
	svc, err := NewService(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, Defaults(), svc.Get(context.Background()))

	var stored Persona
	found, err := records.Load(context.Background(), settings.KeyPersona, &stored)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, Defaults(), stored)
}

func TestReplace_RoundTrip(t *testing.T) {
	records := newRecords(t)
	ctx := context.Background()
	svc, err := NewService(ctx, records)
	require.NoError(t, err)

	p := Persona{Name: "Sol", Style: "Dry wit", Background: "Built the DEX"}
	require.NoError(t, svc.Replace(ctx, p))
	assert.Equal(t, p, svc.Get(ctx))

	// Survives a restart
	reloaded, err := NewService(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, p, reloaded.Get(ctx))
}

func TestReplace_LongFieldsRoundTrip(t *testing.T) {
	records := newRecords(t)
	ctx := context.Background()
	svc, err := NewService(ctx, records)
	require.NoError(t, err)

	p := Persona{
		Name:       strings.Repeat("n", 201),
		Style:      strings.Repeat("s", 2001),
		Background: strings.Repeat("b", 50000),
	}
	require.NoError(t, svc.Replace(ctx, p))
	assert.Equal(t, p, svc.Get(ctx))

	reloaded, err := NewService(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, p, reloaded.Get(ctx))
}

func TestReplace_RejectsBlankFields(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ctx, newRecords(t))
	require.NoError(t, err)

	cases := []Persona{
		{Name: "", Style: "s", Background: "b"},
		{Name: "n", Style: "   ", Background: "b"},
		{Name: "n", Style: "s", Background: "\n\t"},
	}
	for _, p := range cases {
		err := svc.Replace(ctx, p)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Equal(t, Defaults(), svc.Get(ctx), "failed replace must not change the persona")
}

func TestReplace_PersistFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	records := &failingRecords{RecordStore: newRecords(t)}
	svc, err := NewService(ctx, records)
	require.NoError(t, err)

	records.failSave = true
	err = svc.Replace(ctx, Persona{Name: "n", Style: "s", Background: "b"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, Defaults(), svc.Get(ctx))
}

func TestReplace_ConcurrentReadersSeeWholePersona(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ctx, newRecords(t))
	require.NoError(t, err)

	a := Persona{Name: "A", Style: "A-style", Background: "A-bg"}
	b := Persona{Name: "B", Style: "B-style", Background: "B-bg"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			p := a
			if i%2 == 1 {
				p = b
			}
			assert.NoError(t, svc.Replace(ctx, p))
		}(i)
		go func() {
			defer wg.Done()
			got := svc.Get(ctx)
			assert.Contains(t, []Persona{Defaults(), a, b}, got)
		}()
	}
	wg.Wait()
}

func TestNewService_InvalidStoredPersona(t *testing.T) {
	ctx := context.Background()
	records := newRecords(t)
	require.NoError(t, records.Save(ctx, settings.KeyPersona, Persona{Name: "only name"}))

	svc, err := NewService(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), svc.Get(ctx))
}
