package database

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/joho/godotenv/autoload"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gbconnect/internal/utils"
)

const defaultDatabaseName = "gbconnect"

// Collection names.
const (
	UsersCollection         = "users"
	ServicesCollection      = "services"
	BookingsCollection      = "bookings"
	ReviewsCollection       = "reviews"
	OTPsCollection          = "emailOtps"
	NotificationsCollection = "notifications"
)

type Service interface {
	Health() map[string]string
	Client() *mongo.Client
	Database() *mongo.Database
	EnsureIndexes(ctx context.Context) error
	Close() error
}

type service struct {
	db     *mongo.Client
	dbName string
}

func New() Service {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal().Msg("MONGO_URI environment variable not set")
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = defaultDatabaseName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	log.Info().Str("database", dbName).Msg("Connected to MongoDB")

	return &service{
		db:     client,
		dbName: dbName,
	}
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := s.db.Ping(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		return map[string]string{
			"status":  "down",
			"message": "db down",
			"error":   err.Error(),
		}
	}

	return map[string]string{
		"status":  "up",
		"message": "It's healthy",
	}
}

func (s *service) Client() *mongo.Client {
	return s.db
}

func (s *service) Database() *mongo.Database {
	return s.db.Database(s.dbName)
}

// EnsureIndexes creates the indexes the application relies on for uniqueness and lookups.
func (s *service) EnsureIndexes(ctx context.Context) error {
	db := s.Database()

	if err := utils.CreateUniqueIndex(ctx, db.Collection(UsersCollection), bson.D{{Key: "email", Value: 1}}, "Email"); err != nil {
		return err
	}
	if err := utils.CreateUniqueIndex(ctx, db.Collection(ReviewsCollection),
		bson.D{{Key: "service_id", Value: 1}, {Key: "user_id", Value: 1}}, "Review"); err != nil {
		return err
	}

	plain := []struct {
		collection string
		keys       bson.D
	}{
		{ServicesCollection, bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
		{ServicesCollection, bson.D{{Key: "provider_id", Value: 1}}},
		{BookingsCollection, bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{BookingsCollection, bson.D{{Key: "provider_id", Value: 1}, {Key: "status", Value: 1}}},
		{OTPsCollection, bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}}},
		{NotificationsCollection, bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	for _, idx := range plain {
		if err := utils.CreateIndex(ctx, db.Collection(idx.collection), idx.keys); err != nil {
			return err
		}
	}

	log.Info().Msg("Database indexes ensured")
	return nil
}

func (s *service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info().Msg("Disconnecting from MongoDB")
	return s.db.Disconnect(ctx)
}
