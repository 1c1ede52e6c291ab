package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/config"
	"github.com/dvloznov/billing-olap/internal/schema"
)

func TestDialectFor(t *testing.T) {
	cfg := config.FromMap(map[string]string{"BQ_PROJECT_ID": "proj"})

	d, err := dialectFor(cfg, "bigquery")
	require.NoError(t, err)
	assert.Equal(t, schema.BigQueryDialect{ProjectID: "proj", DatasetID: "stripe_olap"}, d)

	d, err = dialectFor(cfg, "snowflake")
	require.NoError(t, err)
	assert.Equal(t, schema.SnowflakeDialect{Stage: "@STRIPE_OLAP.RAW.GCS_STAGE_PROD"}, d)

	_, err = dialectFor(config.FromMap(nil), "bigquery")
	assert.ErrorIs(t, err, config.ErrMissingSetting)

	_, err = dialectFor(cfg, "postgres")
	assert.Error(t, err)
}

func TestOpenEnvironment_Dev(t *testing.T) {
	dir := t.TempDir()
	cfg := config.FromMap(map[string]string{"LOCAL_OUTPUT_DIR": dir})

	env, err := openEnvironment(context.Background(), cfg, false)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.remote)
	assert.Nil(t, env.warehouse)
	assert.Nil(t, env.reporter)
	assert.False(t, env.layout.Timestamped)
	assert.Equal(t, dir, env.outputs.URI(""))
}

func TestOpenEnvironment_NeedsRemote(t *testing.T) {
	_, err := openEnvironment(context.Background(), config.FromMap(nil), true)
	assert.ErrorIs(t, err, config.ErrMissingSetting)
}
