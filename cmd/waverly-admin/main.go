// Package main is the entry point for the Waverly admin CLI.
// It provides administrative commands against a storefront deployment:
// store statistics, exports and user management.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/config"
	"github.com/prn-tf/waverly-store/internal/pkg/crypto"
	"github.com/prn-tf/waverly-store/internal/service"
	"github.com/prn-tf/waverly-store/internal/storefront"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "version":
		fmt.Printf("Waverly Store Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "stats":
		runWithStorefront(*configPath, runStats)

	case "export":
		runWithStorefront(*configPath, runExport)

	case "keygen":
		key, err := crypto.GenerateMasterKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)

	case "user":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "user requires a subcommand: create, list")
			os.Exit(1)
		}
		switch args[1] {
		case "create":
			runUserCreate(*configPath, args[2:])
		case "list":
			runWithStorefront(*configPath, runUserList)
		default:
			fmt.Fprintf(os.Stderr, "Unknown user subcommand: %s\n", args[1])
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// runWithStorefront opens the storefront, runs fn, and closes it.
func runWithStorefront(configPath string, fn func(ctx context.Context, sf *storefront.Storefront) error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	sf := storefront.New(cfg, zerolog.New(os.Stderr).Level(zerolog.WarnLevel))
	if err := sf.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storefront: %v\n", err)
		os.Exit(1)
	}
	defer sf.Close()

	if err := fn(ctx, sf); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runStats(ctx context.Context, sf *storefront.Storefront) error {
	stats, err := sf.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Users:     %d\n", stats.TotalUsers)
	fmt.Printf("Orders:    %d\n", stats.TotalOrders)
	fmt.Printf("Addresses: %d\n", stats.TotalAddresses)
	fmt.Printf("Revenue:   %.2f\n", stats.TotalRevenue)
	return nil
}

func runExport(ctx context.Context, sf *storefront.Storefront) error {
	result, err := sf.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot:  %s\n", result.SnapshotID)
	fmt.Printf("Location:  %s\n", result.Location)
	fmt.Printf("Users:     %d\n", result.Stats.TotalUsers)
	fmt.Printf("Orders:    %d\n", result.Stats.TotalOrders)
	fmt.Printf("Addresses: %d\n", result.Stats.TotalAddresses)
	return nil
}

func runUserList(ctx context.Context, sf *storefront.Storefront) error {
	users, err := sf.ListUsers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-6s %-32s %-24s %s\n", "ID", "EMAIL", "NAME", "CREATED")
	for _, u := range users {
		fmt.Printf("%-6d %-32s %-24s %s\n", u.ID, u.Email, u.Name, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runUserCreate(configPath string, args []string) {
	fs := flag.NewFlagSet("user create", flag.ExitOnError)
	email := fs.String("email", "", "email address (required)")
	password := fs.String("password", "", "password (required)")
	name := fs.String("name", "", "display name (required)")
	phone := fs.String("phone", "", "phone number")
	fs.Parse(args)

	if *email == "" || *password == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "user create requires --email, --password and --name")
		os.Exit(1)
	}

	runWithStorefront(configPath, func(ctx context.Context, sf *storefront.Storefront) error {
		identity, err := sf.RegisterUser(ctx, service.RegisterInput{
			Email:    *email,
			Password: *password,
			Name:     *name,
			Phone:    *phone,
		})
		if err != nil {
			return err
		}
		// Registration signs the account in; an admin run must not
		// leave a session behind in the shared scopes.
		if err := sf.SignOut(ctx); err != nil {
			return err
		}
		fmt.Printf("Created user %d (%s)\n", identity.ID, identity.Email)
		return nil
	})
}

func printUsage() {
	fmt.Println(`Waverly Store Admin CLI

Usage:
  waverly-admin [-config path] <command> [arguments]

Commands:
  stats        Print store statistics (users, orders, addresses, revenue)
  export       Export the full store to the configured sink
  user create  Create a user account
  user list    List registered accounts
  keygen       Generate a session encryption key (hex)
  version      Print version information
  help         Show this help message

Examples:
  waverly-admin stats
  waverly-admin -config ./configs/config.yaml export
  waverly-admin user create --email anna@example.com --password secret --name "Anna"`)
}
