// Package main is a utility for generating a bcrypt hash of a password.
// The server stores only bcrypt hashes, so this is used when manually
// resetting a user's password in the database without running the server.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/portr-admin/portr-admin/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hash <password>")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}
