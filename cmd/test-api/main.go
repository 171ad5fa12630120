// Package main is a smoke-test utility that verifies the admin API is
// reachable and healthy. It hits the health and version endpoints and prints
// the responses, useful for quick post-deployment checks without curl.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	base := "http://localhost:8000"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}

	for _, path := range []string{"/health", "/version"} {
		resp, err := http.Get(base + path)
		if err != nil {
			fmt.Printf("%s: error: %v\n", path, err)
			os.Exit(1)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("%s: error reading body: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d %s\n", path, resp.StatusCode, string(body))
	}
}
