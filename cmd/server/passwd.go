package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/keithlinneman/playable-preview/internal/session"
)

// runPasswd reads a password from stdin and prints its bcrypt hash for use as
// admin-password-hash / PLAYABLE_ADMIN_PASSWORD_HASH.
func runPasswd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	fmt.Fprint(stderr, "password: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		fmt.Fprintln(stderr, "read password:", err)
		return 1
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		fmt.Fprintln(stderr, "password must not be empty")
		return 1
	}

	hash, err := session.HashPassword(pw, *cost)
	if err != nil {
		fmt.Fprintln(stderr, "hash password:", err)
		return 1
	}
	fmt.Fprintln(stdout, hash)
	return 0
}
