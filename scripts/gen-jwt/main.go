// Gen-jwt prints a bearer token accepted by the write routes when
// JWT_SECRET is set.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"typed-todo/internal/config"
)

func main() {
	config.LoadEnvFile(".env")
	subject := flag.String("sub", "test-user", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := config.Get().JWTSecret
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set; the API accepts writes without a token")
		secret = "change-me"
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   *subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}

	fmt.Println(signed)
}
