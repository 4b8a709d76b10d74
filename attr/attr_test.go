package attr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constShow(v string) ShowFunc {
	return func(ctx context.Context) (string, error) { return v, nil }
}

func TestGroup_ShowStore(t *testing.T) {
	var stored string
	g := NewGroup("ds1624")
	require.NoError(t, g.Register(
		Attribute{Name: "temperature", Show: constShow("25496")},
		Attribute{
			Name: "config",
			Show: constShow("01"),
			Store: func(ctx context.Context, value string) error {
				stored = value
				return nil
			},
		},
	))
	ctx := context.Background()

	v, err := g.Show(ctx, "temperature")
	require.NoError(t, err)
	assert.Equal(t, "25496", v)

	require.NoError(t, g.Store(ctx, "config", "03"))
	assert.Equal(t, "03", stored)

	err = g.Store(ctx, "temperature", "1")
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = g.Show(ctx, "humidity")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"config", "temperature"}, g.Names())
}

func TestGroup_RegisterIsAtomic(t *testing.T) {
	g := NewGroup("ds1624")
	require.NoError(t, g.Register(Attribute{Name: "config", Show: constShow("00")}))

	err := g.Register(
		Attribute{Name: "temperature", Show: constShow("0")},
		Attribute{Name: "config", Show: constShow("00")},
	)
	assert.ErrorIs(t, err, ErrExists)
	assert.Equal(t, []string{"config"}, g.Names())

	err = g.Register(Attribute{Name: "broken"})
	assert.Error(t, err)

	g.Unregister("config")
	assert.Empty(t, g.Names())
}
