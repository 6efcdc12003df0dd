// Command token mints an access token for local development, e.g.
//
//	go run ./cmd/token -email admin@example.com -role ADMIN
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/utils"
)

func main() {
	email := flag.String("email", "", "user email (required)")
	role := flag.String("role", model.RoleUser, "USER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}
	if *role != model.RoleUser && *role != model.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}
	_ = godotenv.Load()
	var cfg struct {
		JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *email, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}
