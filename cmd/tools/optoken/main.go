// cmd/tools/optoken/main.go
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/codr1/bumdes/internal/api/authz"
)

// Prints a fresh operator token and the bcrypt hash to paste into
// auth.operator_token_hashes.
func main() {
	token := flag.String("token", "", "Existing token to hash (generated when empty)")
	flag.Parse()

	if *token == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
			os.Exit(1)
		}
		*token = base64.RawURLEncoding.EncodeToString(buf)
	}

	hash, err := authz.HashToken(*token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("token: %s\nhash:  %s\n", *token, hash)
}
