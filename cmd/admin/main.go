package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/radio"
	"identityradio/backend/internal/session"
	"identityradio/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  create-user <email> <password>
  grant-admin <email>
  revoke-admin <email>
  mark-played <song_request_id>
  delete-request <song_request_id>
  create-poll <question> <option> <option> [option...]`

// operator approves every admin-only call; the CLI runs with database access.
type operator struct{}

func (operator) IsAdmin(context.Context, string) (string, bool) { return "cli", true }

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := storage.Open(cfg.DBURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil, openFeed(ctx, cfg, db))

	command, args := os.Args[1], os.Args[2:]

	switch command {
	case "create-user":
		if len(args) != 2 {
			fmt.Println("Usage: admin create-user <email> <password>")
			os.Exit(1)
		}
		user, err := createUser(ctx, storageSvc, args[0], args[1])
		if err != nil {
			log.Fatalf("Error creating user: %v", err)
		}
		fmt.Printf("User %s created with id %s.\n", user.Email, user.ID)
	case "grant-admin", "revoke-admin":
		if len(args) != 1 {
			fmt.Printf("Usage: admin %s <email>\n", command)
			os.Exit(1)
		}
		if err := setAdmin(ctx, storageSvc, args[0], command == "grant-admin"); err != nil {
			log.Fatalf("Error updating admin role: %v", err)
		}
		fmt.Printf("Admin role updated for %s.\n", args[0])
	case "mark-played":
		if len(args) != 1 {
			fmt.Println("Usage: admin mark-played <song_request_id>")
			os.Exit(1)
		}
		req, err := radio.NewSongService(storageSvc, operator{}).MarkPlayed(ctx, "", args[0])
		if err != nil {
			log.Fatalf("Error marking request played: %v", err)
		}
		fmt.Printf("%s - %s marked as played.\n", req.Artist, req.Title)
	case "delete-request":
		if len(args) != 1 {
			fmt.Println("Usage: admin delete-request <song_request_id>")
			os.Exit(1)
		}
		if err := deleteRequest(ctx, storageSvc, args[0]); err != nil {
			log.Fatalf("Error deleting request: %v", err)
		}
		fmt.Printf("Request %s deleted.\n", args[0])
	case "create-poll":
		if len(args) < 1+config.MinPollOptions {
			fmt.Println("Usage: admin create-poll <question> <option> <option> [option...]")
			os.Exit(1)
		}
		poll, err := radio.NewPollService(storageSvc, operator{}).Create(ctx, "", args[0], args[1:])
		if err != nil {
			log.Fatalf("Error creating poll: %v", err)
		}
		fmt.Printf("Poll %s is now active.\n", poll.ID)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

// openFeed returns the configured change feed so running listeners see CLI
// edits. Without one the edits still land, listeners pick them up on refetch.
func openFeed(ctx context.Context, cfg config.Config, db *gorm.DB) changefeed.Feed {
	deps := changefeed.Deps{DB: db, DSN: cfg.DBURL}
	if cfg.RedisAddr != "off" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("WARN: Redis unavailable, change events disabled: %v", err)
		} else {
			deps.Redis = rdb
		}
	}
	feed, err := changefeed.New(cfg.ChangeFeed, deps)
	if err != nil {
		log.Printf("WARN: change events disabled: %v", err)
		return nil
	}
	return feed
}

func createUser(ctx context.Context, s storage.Storage, email, password string) (*models.AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	hash, err := session.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.AuthUser{Email: email, PasswordHash: hash}
	if err := s.CreateAuthUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func setAdmin(ctx context.Context, s storage.Storage, email string, admin bool) error {
	user, err := s.FindAuthUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no user with email %s", email)
	}
	if admin {
		return s.GrantAdmin(ctx, user.ID)
	}
	return s.RevokeAdmin(ctx, user.ID)
}

func deleteRequest(ctx context.Context, s storage.Storage, id string) error {
	return radio.NewSongService(s, operator{}).Delete(ctx, "", strings.TrimSpace(id))
}
