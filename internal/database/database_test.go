package database

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func mustStartMongoContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	dbContainer, err := mongodb.Run(context.Background(), "mongo:7")
	if err != nil {
		return nil, err
	}

	uri, err := dbContainer.ConnectionString(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	os.Setenv("MONGO_URI", uri)
	os.Setenv("MONGO_DB", "gbconnect_test")

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_CONTAINER_TESTS") != "" {
		os.Exit(0)
	}

	teardown, err := mustStartMongoContainer()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not start mongodb container")
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Could not teardown mongodb container")
		}
	}
	os.Exit(code)
}

func TestNew(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
	defer srv.Close()

	assert.Equal(t, "gbconnect_test", srv.Database().Name())
}

func TestHealth(t *testing.T) {
	srv := New()
	defer srv.Close()

	stats := srv.Health()

	if stats["message"] != "It's healthy" {
		t.Fatalf("expected message to be 'It's healthy', got %s", stats["message"])
	}
	assert.Equal(t, "up", stats["status"])
}

func TestEnsureIndexes(t *testing.T) {
	srv := New()
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, srv.EnsureIndexes(ctx))
	// idempotent
	require.NoError(t, srv.EnsureIndexes(ctx))

	users := srv.Database().Collection(UsersCollection)
	_, err := users.InsertOne(ctx, map[string]string{"email": "dup@example.com"})
	require.NoError(t, err)
	_, err = users.InsertOne(ctx, map[string]string{"email": "dup@example.com"})
	assert.Error(t, err, "unique email index should reject duplicates")
}
