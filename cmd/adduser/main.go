// Command adduser creates a user in the relay's identity store. It stands in
// for the shop backend's registration endpoint when running the relay on its
// own.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tesloshop/relay/internal/config"
	"github.com/tesloshop/relay/internal/directory"
)

func main() {
	email := flag.String("email", "", "email address (required)")
	fullName := flag.String("name", "", "display name (required)")
	password := flag.String("password", "", "password (required)")
	flag.Parse()

	if *email == "" || *fullName == "" || *password == "" {
		flag.Usage()
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

	identity, err := store.Create(*email, *fullName, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(identity.ID)
}
