package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/database"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/service"
	"golang.org/x/term"
)

func main() {
	kind := flag.String("type", "learner", "Token type: learner or admin")
	userID := flag.Int("user", 0, "User ID carried by the token")
	email := flag.String("email", "", "Learner email")
	perms := flag.String("permissions", service.PermissionTestsMonitor+","+service.PermissionTestsWrite, "Comma-separated admin permissions")
	revoke := flag.String("revoke", "", "Revoke the token with this id instead of issuing one")
	promptSecret := flag.Bool("prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *revoke != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		if err := service.NewAuthService(cfg, rdb).RevokeToken(ctx, *revoke); err != nil {
			log.Fatal().Err(err).Msg("Failed to revoke token")
		}
		fmt.Printf("Token %s revoked\n", *revoke)
		return
	}

	if *promptSecret {
		secret, err := readSecret()
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		cfg.JWTSecret = secret
	}

	if *userID <= 0 {
		fmt.Println("Error: -user is required")
		os.Exit(2)
	}

	authService := service.NewAuthService(cfg, nil)

	var (
		token string
		err   error
	)
	switch *kind {
	case "learner":
		if *email == "" {
			*email = prompt("Enter Email: ")
		}
		token, err = authService.GenerateLearnerToken(*userID, *email)
	case "admin":
		token, err = authService.GenerateAdminToken(*userID, splitList(*perms))
	default:
		fmt.Printf("Error: unknown token type %q\n", *kind)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	claims, err := authService.ValidateToken(token)
	if err != nil {
		log.Fatal().Err(err).Msg("Issued token does not validate")
	}

	fmt.Printf("Token ID:   %s\n", claims.ID)
	fmt.Printf("Expires at: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	fmt.Println(token)
}

// readSecret reads the signing secret without echoing it.
func readSecret() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("-prompt-secret needs an interactive terminal")
	}
	fmt.Fprint(os.Stderr, "Enter JWT secret: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if len(secret) < 16 {
		return "", fmt.Errorf("secret must be at least 16 characters")
	}
	return secret, nil
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
