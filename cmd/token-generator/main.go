// Command token-generator prints a signed access token for a user, for use
// against a development server. It reads the same configuration as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/config"
	"github.com/phrazzld/taskplan-api/internal/service/auth"
)

func main() {
	userFlag := flag.String("user", "", "user ID to issue the token for (random when empty)")
	flag.Parse()

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			log.Fatalf("invalid user ID %q: %v", *userFlag, err)
		}
		userID = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		log.Fatalf("failed to initialize JWT service: %v", err)
	}

	token, err := jwtService.GenerateToken(context.Background(), userID)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	fmt.Printf("User:  %s\nToken: %s\n", userID, token)
}
