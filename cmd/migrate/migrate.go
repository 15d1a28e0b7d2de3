package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"social-autoreply-platform/internal/config"
	"social-autoreply-platform/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  ensure-indexes         - Create the collection indexes")
		fmt.Println("  backfill-business-ids  - Copy tenant business ids onto their media owner rows")
		fmt.Println("  verify                 - Print collection counts")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "ensure-indexes":
		if err := database.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes are in place")

	case "backfill-business-ids":
		if err := backfillBusinessIDs(ctx, db); err != nil {
			log.Fatalf("Backfill failed: %v", err)
		}

	case "verify":
		if err := verify(ctx, db); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func backfillBusinessIDs(ctx context.Context, db *mongo.Database) error {
	store, err := database.NewMongoStore(ctx, db)
	if err != nil {
		return err
	}

	tenants, err := store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var total int64
	for _, tenant := range tenants {
		if tenant.BusinessID == "" {
			continue
		}
		n, err := store.BackfillTenantMediaBusinessIDs(ctx, tenant.ID, tenant.BusinessID)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenant.ID.Hex(), err)
		}
		if n > 0 {
			fmt.Printf("  %s: %d media owner rows updated\n", tenant.ID.Hex(), n)
		}
		total += n
	}

	fmt.Printf("Backfill complete: %d tenants scanned, %d rows updated\n", len(tenants), total)
	return nil
}

func verify(ctx context.Context, db *mongo.Database) error {
	collections := []string{
		database.TenantsCollection,
		database.MediaOwnersCollection,
		database.PostStatesCollection,
		database.ContextsCollection,
		database.RepliedCollection,
	}

	for _, name := range collections {
		count, err := db.Collection(name).CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		fmt.Printf("  %-14s %d\n", name, count)
	}

	unbound, err := db.Collection(database.TenantsCollection).CountDocuments(ctx, bson.M{
		"$or": bson.A{
			bson.M{"business_id": bson.M{"$exists": false}},
			bson.M{"business_id": ""},
		},
	})
	if err != nil {
		return fmt.Errorf("count unbound tenants: %w", err)
	}
	fmt.Printf("Tenants without a business id: %d\n", unbound)
	return nil
}
