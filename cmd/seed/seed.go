package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"social-autoreply-platform/internal/config"
	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/models"
	"social-autoreply-platform/utils"
)

// Creates or updates a tenant for local testing and prints a bearer token
// for the operator API.
func main() {
	basicID := flag.String("basic-id", "", "basic user id from the OAuth exchange")
	businessID := flag.String("business-id", "", "business account id used by webhooks")
	accessToken := flag.String("access-token", "", "long-lived access token")
	expiresIn := flag.Duration("token-expires-in", 60*24*time.Hour, "access token lifetime")
	postID := flag.String("enable-post", "", "optional post id to enable auto-reply on")
	postContext := flag.String("context", "", "optional context text for -enable-post")
	jwtTTL := flag.Duration("jwt-ttl", 24*time.Hour, "lifetime of the printed bearer token")
	flag.Parse()

	if *basicID == "" && *businessID == "" {
		log.Fatal("one of -basic-id or -business-id is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required to mint a token")
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := database.NewMongoStore(ctx, client.Database(cfg.DBName))
	if err != nil {
		log.Fatalf("Failed to init store: %v", err)
	}

	tenant, err := findTenant(ctx, store, *businessID, *basicID)
	if err != nil {
		log.Fatalf("Failed to look up tenant: %v", err)
	}
	if tenant == nil {
		tenant = &models.Tenant{}
		fmt.Println("Creating tenant")
	} else {
		fmt.Printf("Updating tenant %s\n", tenant.ID.Hex())
	}

	if *basicID != "" {
		tenant.BasicUserID = *basicID
	}
	if *businessID != "" {
		tenant.BusinessID = *businessID
	}
	if *accessToken != "" {
		expires := time.Now().Add(*expiresIn)
		tenant.AccessToken = *accessToken
		tenant.TokenType = "bearer"
		tenant.TokenExpiresAt = &expires
	}

	if err := store.SaveTenant(ctx, tenant); err != nil {
		log.Fatalf("Failed to save tenant: %v", err)
	}

	if *postID != "" {
		if _, err := store.SetPostState(ctx, tenant.ID, *postID, true); err != nil {
			log.Fatalf("Failed to enable post: %v", err)
		}
		if *postContext != "" {
			if err := store.SetPostContext(ctx, tenant.ID, *postID, *postContext); err != nil {
				log.Fatalf("Failed to save context: %v", err)
			}
		}
		fmt.Printf("Auto-reply enabled on post %s\n", *postID)
	}

	token, err := utils.GenerateJWT(tenant.ID.Hex(), cfg.JWTSecret, *jwtTTL)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Printf("Tenant ID:    %s\n", tenant.ID.Hex())
	fmt.Printf("Access token: %s\n", utils.RedactToken(tenant.AccessToken))
	fmt.Printf("Bearer token: %s\n", token)
}

func findTenant(ctx context.Context, store *database.MongoStore, businessID, basicID string) (*models.Tenant, error) {
	if businessID != "" {
		t, err := store.FindTenantByBusinessID(ctx, businessID)
		if err == nil || !errors.Is(err, database.ErrNotFound) {
			return t, err
		}
	}
	if basicID != "" {
		t, err := store.FindTenantByBasicUserID(ctx, basicID)
		if err == nil || !errors.Is(err, database.ErrNotFound) {
			return t, err
		}
	}
	return nil, nil
}
