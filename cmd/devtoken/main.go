// Command devtoken mints a bearer token for local testing against the API.
//
//	JWT_SECRET=... go run ./cmd/devtoken -role worker -sub 3f1c...
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/auth"
	"github.com/sindh/backend/internal/models"
)

func main() {
	role := flag.String("role", "worker", "worker or employer")
	sub := flag.String("sub", "", "participant id (random when empty)")
	issuer := flag.String("iss", "sindh", "token issuer")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(2)
	}
	id := uuid.New()
	if *sub != "" {
		var err error
		if id, err = uuid.Parse(*sub); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -sub: %v\n", err)
			os.Exit(2)
		}
	}
	tok, err := auth.NewTokenService(secret, *issuer, *ttl).Issue(models.Actor{ParticipantID: id, Role: models.Role(*role)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "participant %s (%s)\n", id, *role)
	fmt.Println(tok)
}
