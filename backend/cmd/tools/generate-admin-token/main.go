package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/filmzi/filelink/shared/config"
	"github.com/filmzi/filelink/shared/jwt"
)

func main() {
	var configFolder, subject string
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.StringVar(&subject, "subject", "operator", "who the token is issued to")
	flag.Parse()

	cfg, err := config.Load(configFolder)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Private.AdminJwtSecret == "" {
		log.Fatal("admin_jwt_secret is not set in private.yaml, /db endpoints are open")
	}

	token, err := jwt.New(cfg.Private.AdminJwtSecret, cfg.Public.AdminTokenTTL).NewToken(subject, true)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println("=================================================")
	fmt.Println("  Admin token for /db endpoints")
	fmt.Println("=================================================")
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	if cfg.Public.AdminTokenTTL > 0 {
		fmt.Printf("Expires in %s.\n", cfg.Public.AdminTokenTTL)
	} else {
		fmt.Println("Never expires. Rotate admin_jwt_secret to revoke it.")
	}
	fmt.Println("Use it as: Authorization: Bearer <token>")
	fmt.Println("=================================================")
}
