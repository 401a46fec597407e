// Package main provides moderator management utilities for campus chat.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"campuschat/internal/bootstrap"
	"campuschat/internal/config"
	"campuschat/internal/repository"
	"campuschat/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin list-admins                          - List sub-admins")
		fmt.Println("  go run ./cmd/admin create-sub-admin <username> <pass>  - Create a sub-admin")
		fmt.Println("  go run ./cmd/admin delete-sub-admin <admin_id>         - Delete a sub-admin")
		fmt.Println("  go run ./cmd/admin toggle-user <user_id>               - Activate or deactivate a student")
		fmt.Println("  go run ./cmd/admin reported                            - List students over the report threshold")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// Writes go through the same cache as the server so its views stay fresh.
	admins := service.NewAdminService(
		repository.NewUserRepository(db, rdb),
		repository.NewAdminRepository(db),
		repository.NewSettingsRepository(db, rdb, cfg.SettingsCacheTTL),
	)

	switch command := os.Args[1]; command {
	case "list-admins":
		listAdmins(ctx, admins)

	case "create-sub-admin":
		requireArgs(4, "create-sub-admin <username> <password>")
		admin, err := admins.CreateSubAdmin(ctx, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Failed to create sub-admin: %v", err)
		}
		fmt.Printf("✅ Created sub-admin %s (ID: %d)\n", admin.Username, admin.ID)

	case "delete-sub-admin":
		requireArgs(3, "delete-sub-admin <admin_id>")
		if err := admins.DeleteSubAdmin(ctx, parseID(os.Args[2])); err != nil {
			log.Fatalf("Failed to delete sub-admin: %v", err)
		}
		fmt.Printf("✅ Deleted sub-admin %s\n", os.Args[2])

	case "toggle-user":
		requireArgs(3, "toggle-user <user_id>")
		user, err := admins.ToggleUserStatus(ctx, parseID(os.Args[2]))
		if err != nil {
			log.Fatalf("Failed to toggle user: %v", err)
		}
		state := "deactivated"
		if user.IsActive {
			state = "activated"
		}
		fmt.Printf("✅ %s (ID: %d) %s\n", user.FullName, user.ID, state)

	case "reported":
		listReported(ctx, admins)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func requireArgs(n int, usage string) {
	if len(os.Args) < n {
		fmt.Println("Usage: go run ./cmd/admin " + usage)
		os.Exit(1)
	}
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid ID: %s\n", raw)
		os.Exit(1)
	}
	return uint(id)
}

func listAdmins(ctx context.Context, admins *service.AdminService) {
	list, err := admins.ListSubAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(list) == 0 {
		fmt.Println("No sub-admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Sub-admins:")
	fmt.Println("─────────────────────────────────────")
	for _, a := range list {
		fmt.Printf("ID: %d | Username: %s | Created: %s\n", a.ID, a.Username, a.CreatedAt.Format("2006-01-02"))
	}
	fmt.Println("─────────────────────────────────────")
}

func listReported(ctx context.Context, admins *service.AdminService) {
	users, err := admins.ReportedUsers(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch reported users: %v", err)
	}

	if len(users) == 0 {
		fmt.Println("No students over the report threshold")
		return
	}

	fmt.Println("\n🚩 Reported Students:")
	fmt.Println("─────────────────────────────────────")
	for _, u := range users {
		fmt.Printf("ID: %d | %s | %s | Reports: %d | Active: %v\n", u.ID, u.FullName, u.Faculty, u.ReportCount, u.IsActive)
	}
	fmt.Println("─────────────────────────────────────")
}
