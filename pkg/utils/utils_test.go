package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionFromZone(t *testing.T) {
	region, err := regionFromZone("projects/123456/zones/europe-west3-a")
	require.NoError(t, err)
	assert.Equal(t, "europe-west3", region)

	_, err = regionFromZone("garbage")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TWEETAPP_MONGODB_URI", "mongodb://db:27017")
	t.Setenv("TWEETAPP_MONGODB_PORT", "27018")
	t.Setenv("TWEETAPP_NUM_WORKERS", "many")
	t.Setenv("TWEETAPP_DEDUPE_LIKES", "true")

	uri := "mongodb://localhost:27017"
	EnvString(&uri, "MONGODB_URI")
	assert.Equal(t, "mongodb://db:27017", uri)

	addr := "localhost"
	EnvString(&addr, "MONGODB_ADDRESS")
	assert.Equal(t, "localhost", addr)

	port := 27017
	EnvInt(&port, "MONGODB_PORT")
	assert.Equal(t, 27018, port)

	workers := 4
	EnvInt(&workers, "NUM_WORKERS")
	assert.Equal(t, 4, workers)

	dedupe := false
	EnvBool(&dedupe, "DEDUPE_LIKES")
	assert.True(t, dedupe)
}
