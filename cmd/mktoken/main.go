// Command mktoken mints a bearer token for an existing user, optionally
// checking the password first. It stands in for the shop backend's login
// endpoint when running the relay on its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tesloshop/relay/internal/auth"
	"github.com/tesloshop/relay/internal/config"
	"github.com/tesloshop/relay/internal/directory"
)

func main() {
	email := flag.String("email", "", "look the user up by email")
	id := flag.String("id", "", "look the user up by id")
	password := flag.String("password", "", "verify this password before minting")
	flag.Parse()

	if (*email == "") == (*id == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -email or -id is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	db, err := directory.OpenDB(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", cfg.Store.Path, err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := directory.NewStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store init: %v\n", err)
		os.Exit(1)
	}

	identity, err := resolve(store, *email, *id, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	verifier := auth.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	token, err := verifier.Issue(identity.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func resolve(store *directory.Store, email, id, password string) (directory.Identity, error) {
	if password != "" {
		if email == "" {
			return directory.Identity{}, fmt.Errorf("-password requires -email")
		}
		return store.Authenticate(email, password)
	}
	if email != "" {
		return store.FindByEmail(email)
	}
	return store.FetchByID(context.Background(), id)
}
