package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"picfeed/database"
	"picfeed/models"

	"github.com/SherClockHolmes/webpush-go"
)

const maintenanceTimeout = 30 * time.Second

func runVAPIDKeys() {
	if err := writeVAPIDKeys(os.Stdout); err != nil {
		log.Fatal("Failed to generate VAPID keys:", err)
	}
}

func writeVAPIDKeys(w io.Writer) error {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Add these to your .env file:")
	fmt.Fprintf(w, "VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Fprintf(w, "VAPID_PRIVATE_KEY=%s\n", privateKey)
	fmt.Fprintln(w, "VAPID_SUBJECT=mailto:you@example.com")
	return nil
}

func runDump() {
	withDatabase(func(ctx context.Context) error {
		return dump(ctx, os.Stdout, database.Users, database.Posts)
	})
}

func runLatest() {
	withDatabase(func(ctx context.Context) error {
		return latest(ctx, os.Stdout, database.Posts)
	})
}

func runCleanupPosts() {
	withDatabase(func(ctx context.Context) error {
		n, err := database.Posts.DeleteOrphaned(ctx)
		if err != nil {
			return err
		}
		log.Printf("Deleted %d posts without a username", n)
		return nil
	})
}

func withDatabase(fn func(ctx context.Context) error) {
	cfg := mustLoadConfig()
	mustConnect(cfg)

	if err := runThenDisconnect(fn, database.DisconnectMongo); err != nil {
		log.Fatal("❌ ", err)
	}
}

// runThenDisconnect always disconnects, even when fn fails.
func runThenDisconnect(fn func(ctx context.Context) error, disconnect func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	err := fn(ctx)
	cancel()

	if derr := disconnect(); derr != nil {
		log.Printf("⚠️  Disconnect error: %v", derr)
	}
	return err
}

type dumpOutput struct {
	Users []models.User `json:"users"`
	Posts []models.Post `json:"posts"`
}

// dump writes every user (passwords are never serialized) and every post.
func dump(ctx context.Context, w io.Writer, users database.UserStore, posts database.PostStore) error {
	allUsers, err := users.All(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	allPosts, err := posts.List(ctx)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dumpOutput{Users: allUsers, Posts: allPosts})
}

func latest(ctx context.Context, w io.Writer, posts database.PostStore) error {
	post, err := posts.Latest(ctx)
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(w, "No posts yet")
		return nil
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(post)
}
