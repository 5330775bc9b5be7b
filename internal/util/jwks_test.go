package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func TestPEMFromJWKSEC(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	doc, _ := json.Marshal(JWKS{Keys: []JWK{
		{Kid: "enc", Kty: "EC", Use: "enc", Crv: "P-256", X: "AA", Y: "AA"},
		{
			Kid: "sig-1", Kty: "EC", Alg: "ES256", Use: "sig", Crv: "P-256",
			X: b64(key.PublicKey.X.FillBytes(make([]byte, 32))),
			Y: b64(key.PublicKey.Y.FillBytes(make([]byte, 32))),
		},
	}})

	pemKey, err := PEMFromJWKS(doc, "")
	if err != nil {
		t.Fatalf("PEMFromJWKS returned error: %v", err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-3"},
	}).SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	got, err := ValidateJWT(signed, pemKey)
	if err != nil {
		t.Fatalf("ValidateJWT returned error: %v", err)
	}
	if got.Subject != "user-3" {
		t.Fatalf("expected subject user-3, got %s", got.Subject)
	}
}

func TestPEMFromJWKSRSAByKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	doc, _ := json.Marshal(JWKS{Keys: []JWK{
		{Kid: "other", Kty: "OKP"},
		{
			Kid: "rsa-1", Kty: "RSA", Alg: "RS256",
			N: b64(key.PublicKey.N.Bytes()),
			E: b64(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		},
	}})

	pemKey, err := PEMFromJWKS(doc, "rsa-1")
	if err != nil {
		t.Fatalf("PEMFromJWKS returned error: %v", err)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-4"},
	}).SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	if _, err := ValidateJWT(signed, pemKey); err != nil {
		t.Fatalf("ValidateJWT returned error: %v", err)
	}

	if _, err := PEMFromJWKS(doc, "other"); err == nil {
		t.Fatal("expected error for unsupported key type")
	}
	if _, err := PEMFromJWKS(doc, "missing"); err == nil {
		t.Fatal("expected error for unknown kid")
	}
	if _, err := PEMFromJWKS([]byte("{"), ""); err == nil {
		t.Fatal("expected error for malformed JWKS")
	}
}
