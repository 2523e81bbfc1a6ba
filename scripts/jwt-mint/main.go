// Command jwt-mint creates a signed bearer token for local development.
//
// The token is signed with the shared HS256 secret the server is configured
// with and carries the workspace/container claims the records API reads.
//
//	go run ./scripts/jwt-mint -secret dev-secret -workspace 3 -containers 10,11
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	var currentUser, err = user.Current()
	if err != nil {
		currentUser = &user.User{Username: "user-1"}
	}

	secret := flag.String("secret", "", "Shared HS256 signing secret (matches server.auth.secret)")
	subject := flag.String("subject", currentUser.Username, "JWT subject")
	workspace := flag.Int64("workspace", 0, "Workspace the token operates in (0 = live)")
	containers := flag.String("containers", "", "Accessible container ids, comma-separated (-1 = all)")
	elevated := flag.Bool("elevated", false, "Grant elevated access")
	expires := flag.Duration("expires", time.Hour, "Token lifetime (e.g. 1h)")
	flag.Parse()

	if *secret == "" {
		exitErr(fmt.Errorf("-secret is required"))
	}

	containerIDs, err := parseIDList(*containers)
	if err != nil {
		exitErr(err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       *subject,
		"iat":       now.Unix(),
		"exp":       now.Add(*expires).Unix(),
		"nbf":       now.Add(-1 * time.Minute).Unix(),
		"workspace": *workspace,
	}
	if *elevated {
		claims["elevated"] = true
	}
	if len(containerIDs) > 0 {
		claims["containers"] = containerIDs
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(*secret))
	if err != nil {
		exitErr(err)
	}

	fmt.Println(signed)
}

func parseIDList(value string) ([]int64, error) {
	if value == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid container id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
