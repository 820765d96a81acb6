// Package main provides realmctl, the operator CLI for managing zonegate
// accounts, realms and tokens directly against the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/zonegate/zonegate/internal/policy"
	"github.com/zonegate/zonegate/internal/storage"
	"github.com/zonegate/zonegate/internal/token"
)

const usage = `expected a subcommand:
  create-account  -name <account>
  create-realm    -account <id> -domain <fqdn> -type <host|subdomain|subdomain_only> -types A,AAAA -ops read,update
  approve-realm   -id <realm>
  revoke-realm    -id <realm>
  create-token    -realm <id> -name <label> [-types A] [-ops read] [-ips 203.0.113.0/24] [-days 365]
  revoke-token    -id <token>
  list-realms     [-account <id>]
  list-tokens     -realm <id>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "/data/zonegate.db"
	}

	store, err := storage.New(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	ctx := context.Background()

	switch os.Args[1] {
	case "create-account":
		cmd := flag.NewFlagSet("create-account", flag.ExitOnError)
		name := cmd.String("name", "", "Account name")
		parseArgs(cmd)
		createAccount(ctx, store, *name)
	case "create-realm":
		cmd := flag.NewFlagSet("create-realm", flag.ExitOnError)
		accountID := cmd.Int64("account", 0, "Owning account ID")
		domain := cmd.String("domain", "", "Realm domain (FQDN)")
		realmType := cmd.String("type", "subdomain", "Realm type (host, subdomain, subdomain_only)")
		types := cmd.String("types", "A,AAAA", "Comma-separated allowed record types")
		ops := cmd.String("ops", "read,update", "Comma-separated allowed operations")
		parseArgs(cmd)
		createRealm(ctx, store, *accountID, *domain, *realmType, *types, *ops)
	case "approve-realm":
		cmd := flag.NewFlagSet("approve-realm", flag.ExitOnError)
		id := cmd.Int64("id", 0, "Realm ID")
		parseArgs(cmd)
		approveRealm(ctx, store, *id)
	case "revoke-realm":
		cmd := flag.NewFlagSet("revoke-realm", flag.ExitOnError)
		id := cmd.Int64("id", 0, "Realm ID")
		parseArgs(cmd)
		revokeRealm(ctx, store, *id)
	case "create-token":
		cmd := flag.NewFlagSet("create-token", flag.ExitOnError)
		realmID := cmd.Int64("realm", 0, "Realm ID")
		name := cmd.String("name", "", "Token name (unique per realm)")
		types := cmd.String("types", "", "Comma-separated record types (empty inherits the realm's)")
		ops := cmd.String("ops", "", "Comma-separated operations (empty inherits the realm's)")
		ips := cmd.String("ips", "", "Comma-separated allowed IP ranges (empty means unrestricted)")
		days := cmd.Int("days", 0, "Validity in days (0 means no expiry)")
		parseArgs(cmd)
		createToken(ctx, store, *realmID, *name, *types, *ops, *ips, *days)
	case "revoke-token":
		cmd := flag.NewFlagSet("revoke-token", flag.ExitOnError)
		id := cmd.Int64("id", 0, "Token ID")
		parseArgs(cmd)
		revokeToken(ctx, store, *id)
	case "list-realms":
		cmd := flag.NewFlagSet("list-realms", flag.ExitOnError)
		accountID := cmd.Int64("account", 0, "Account ID (0 lists all)")
		parseArgs(cmd)
		listRealms(ctx, store, *accountID)
	case "list-tokens":
		cmd := flag.NewFlagSet("list-tokens", flag.ExitOnError)
		realmID := cmd.Int64("realm", 0, "Realm ID")
		parseArgs(cmd)
		listTokens(ctx, store, *realmID)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func parseArgs(cmd *flag.FlagSet) {
	if err := cmd.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
}

// splitList turns "A, AAAA" into []string{"A","AAAA"}; empty input is nil so
// token-level scoping inherits from the realm.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitOps(raw string) []policy.Operation {
	parts := splitList(raw)
	if parts == nil {
		return nil
	}
	ops := make([]policy.Operation, 0, len(parts))
	for _, p := range parts {
		ops = append(ops, policy.Operation(p))
	}
	return ops
}

func createAccount(ctx context.Context, store *storage.SQLiteStorage, name string) {
	if name == "" {
		log.Fatal("account name is required")
	}
	alias, err := token.NewAccountAlias()
	if err != nil {
		log.Fatalf("failed to generate alias: %v", err)
	}
	account, err := store.CreateAccount(ctx, name, alias)
	if err != nil {
		log.Fatalf("failed to create account: %v", err)
	}
	fmt.Printf("Account created: id=%d name=%s alias=%s\n", account.ID, account.Name, account.Alias)
}

func createRealm(ctx context.Context, store *storage.SQLiteStorage, accountID int64, domain, realmType, types, ops string) {
	realm := &policy.Realm{
		AccountID:          accountID,
		Domain:             policy.NormalizeHostname(domain),
		Type:               policy.RealmType(realmType),
		AllowedRecordTypes: splitList(strings.ToUpper(types)),
		AllowedOperations:  splitOps(strings.ToLower(ops)),
		Status:             policy.RealmStatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	if err := policy.ValidateRealm(realm); err != nil {
		log.Fatalf("invalid realm: %v", err)
	}
	if _, err := store.GetAccount(ctx, accountID); err != nil {
		log.Fatalf("unknown account %d: %v", accountID, err)
	}
	created, err := store.CreateRealm(ctx, realm)
	if err != nil {
		log.Fatalf("failed to create realm: %v", err)
	}
	fmt.Printf("Realm created (pending approval): id=%d domain=%s type=%s\n", created.ID, created.Domain, created.Type)
}

func approveRealm(ctx context.Context, store *storage.SQLiteStorage, id int64) {
	if err := store.ApproveRealm(ctx, id, time.Now().UTC()); err != nil {
		log.Fatalf("failed to approve realm %d: %v", id, err)
	}
	fmt.Printf("Realm %d approved\n", id)
}

func revokeRealm(ctx context.Context, store *storage.SQLiteStorage, id int64) {
	if err := store.RevokeRealm(ctx, id, time.Now().UTC()); err != nil {
		log.Fatalf("failed to revoke realm %d: %v", id, err)
	}
	fmt.Printf("Realm %d revoked (all its tokens deactivated)\n", id)
}

func createToken(ctx context.Context, store *storage.SQLiteStorage, realmID int64, name, types, ops, ips string, days int) {
	if name == "" {
		log.Fatal("token name is required")
	}
	realm, err := store.GetRealm(ctx, realmID)
	if err != nil {
		log.Fatalf("unknown realm %d: %v", realmID, err)
	}
	if realm.Status != policy.RealmStatusApproved {
		log.Fatalf("realm %d is %s, only approved realms can issue tokens", realmID, realm.Status)
	}
	account, err := store.GetAccount(ctx, realm.AccountID)
	if err != nil {
		log.Fatalf("failed to load account: %v", err)
	}

	secret, err := token.GenerateSecret()
	if err != nil {
		log.Fatalf("failed to generate secret: %v", err)
	}
	hash, err := token.Hash(secret)
	if err != nil {
		log.Fatalf("failed to hash secret: %v", err)
	}

	tok := &policy.Token{
		RealmID:            realmID,
		Name:               name,
		Prefix:             token.LookupPrefix(secret),
		Hash:               hash,
		AllowedRecordTypes: splitList(strings.ToUpper(types)),
		AllowedOperations:  splitOps(strings.ToLower(ops)),
		AllowedIPRanges:    splitList(ips),
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	if days > 0 {
		expires := time.Now().UTC().AddDate(0, 0, days)
		tok.ExpiresAt = &expires
	}
	if err := policy.ValidateToken(realm, tok); err != nil {
		log.Fatalf("invalid token: %v", err)
	}

	created, err := store.CreateToken(ctx, tok)
	if err != nil {
		log.Fatalf("failed to save token: %v", err)
	}

	fmt.Printf("Token created\n")
	fmt.Printf("---------------------------\n")
	fmt.Printf("ID:      %d\n", created.ID)
	fmt.Printf("Realm:   %s\n", realm.Domain)
	fmt.Printf("Name:    %s\n", created.Name)
	if created.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", created.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("BEARER:  %s\n", token.Format(account.Alias, secret))
	fmt.Printf("---------------------------\n")
	fmt.Printf("CAUTION: this is the only time the bearer will be shown.\n")
}

func revokeToken(ctx context.Context, store *storage.SQLiteStorage, id int64) {
	if err := store.RevokeToken(ctx, id, time.Now().UTC()); err != nil {
		log.Fatalf("failed to revoke token %d: %v", id, err)
	}
	fmt.Printf("Token %d revoked\n", id)
}

func listRealms(ctx context.Context, store *storage.SQLiteStorage, accountID int64) {
	realms, err := store.ListRealms(ctx, accountID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%-6s %-8s %-30s %-15s %-9s %s\n", "ID", "Account", "Domain", "Type", "Status", "Types/Ops")
	for _, r := range realms {
		fmt.Printf("%-6d %-8d %-30s %-15s %-9s %s/%s\n",
			r.ID, r.AccountID, r.Domain, r.Type, r.Status,
			strings.Join(r.AllowedRecordTypes, ","), joinOps(r.AllowedOperations))
	}
}

func listTokens(ctx context.Context, store *storage.SQLiteStorage, realmID int64) {
	if realmID == 0 {
		log.Fatal("realm ID is required")
	}
	tokens, err := store.ListTokensByRealm(ctx, realmID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%-6s %-20s %-10s %-8s %-8s %s\n", "ID", "Name", "Prefix", "Status", "Uses", "Last used")
	for _, tok := range tokens {
		status := "active"
		if !tok.IsActive || tok.RevokedAt != nil {
			status = "revoked"
		}
		lastUsed := "-"
		if tok.LastUsedAt != nil {
			lastUsed = tok.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Printf("%-6d %-20s %-10s %-8s %-8d %s\n", tok.ID, tok.Name, tok.Prefix, status, tok.UseCount, lastUsed)
	}
}

func joinOps(ops []policy.Operation) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, string(op))
	}
	return strings.Join(parts, ",")
}
