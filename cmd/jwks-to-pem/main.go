// Command jwks-to-pem prints the auth provider's signing key as PEM, ready
// for JWT_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/util"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	defaultURL := ""
	if base := os.Getenv("AUTH_PROVIDER_URL"); base != "" {
		defaultURL = strings.TrimRight(base, "/") + "/.well-known/jwks.json"
	}
	jwksURL := flag.String("url", defaultURL, "JWKS endpoint")
	kid := flag.String("kid", "", "key id; defaults to the first signing key")
	flag.Parse()

	if *jwksURL == "" {
		fmt.Fprintln(os.Stderr, "Set -url or AUTH_PROVIDER_URL")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *jwksURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building request: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching JWKS: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error fetching JWKS: %s\n", resp.Status)
		os.Exit(1)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		os.Exit(1)
	}

	pemKey, err := util.PEMFromJWKS(body, *kid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting JWKS: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(pemKey)
}
