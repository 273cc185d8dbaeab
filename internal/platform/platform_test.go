package platform

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/aqi-forecast/internal/featurestore"
)

func TestLoginRequiresCredential(t *testing.T) {
	_, err := Login(context.Background(), Config{Driver: "memory"}, "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestLoginSQLite(t *testing.T) {
	ctx := context.Background()
	project, err := Login(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "p.db")}, "key")
	require.NoError(t, err)
	defer project.Close()

	store, err := project.FeatureStore()
	require.NoError(t, err)
	res, err := store.Probe(ctx, "aqi_data", 1)
	require.NoError(t, err)
	assert.Equal(t, featurestore.NotFound, res)

	reg, err := project.ModelRegistry(filepath.Join(t.TempDir(), "models"))
	require.NoError(t, err)
	versions, err := reg.List(ctx, "aqi_model")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestDialectorInjectsCredential(t *testing.T) {
	d, err := dialectorFor(Config{Driver: "mysql", DSN: "aqi@tcp(db:3306)/features"}, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	d, err = dialectorFor(Config{Driver: "postgres", DSN: "host=db user=aqi dbname=features"}, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = dialectorFor(Config{Driver: "postgres", DSN: "postgres://aqi@db/features"}, "s3cret")
	assert.Error(t, err)

	_, err = dialectorFor(Config{Driver: "mysql", DSN: "not a dsn"}, "s3cret")
	assert.Error(t, err)

	_, err = dialectorFor(Config{Driver: "oracle"}, "s3cret")
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}
