// Package main is a development utility that generates a random value
// suitable for the crypto encryption_key config setting. The key encrypts
// secrets at rest (SMTP password, GitHub access tokens), so it should be
// generated once per deployment and kept stable afterwards.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		log.Fatal(err)
	}

	key := base64.RawURLEncoding.EncodeToString(randomBytes)
	fmt.Println("Generated encryption key:")
	fmt.Println(key)
	fmt.Println()
	fmt.Println("Add it to your config file:")
	fmt.Printf("crypto:\n  encryption_key: %s\n", key)
}
