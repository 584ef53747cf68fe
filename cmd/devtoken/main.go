// Command devtoken mints access tokens signed with JWT_SECRET so the API
// can be exercised locally without the identity provider.
//
//	devtoken -sub alice -entity LCX -name "Alice Ng"
//	devtoken -sub ops -role ORGANIZER -ttl 8h
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/conference-reservation/internal/config"
	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/utils"
)

type secretConfig struct {
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
}

func main() {
	sub := flag.String("sub", "", "delegate id (token subject)")
	entity := flag.String("entity", "", "entity the delegate belongs to")
	name := flag.String("name", "", "display name shown on the seating chart")
	role := flag.String("role", utils.RoleDelegate, "DELEGATE or ORGANIZER")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		log.Fatal("-sub is required")
	}
	if *role == utils.RoleDelegate && *entity == "" {
		log.Fatal("-entity is required for DELEGATE tokens")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	var sc secretConfig
	if err := config.ParseEnv(&sc); err != nil {
		log.Fatal(err)
	}

	tok, err := utils.NewAccessToken(sc.JWTSecret, model.Delegate{ID: *sub, EntityID: *entity, DisplayName: *name}, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}
