package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const (
	defaultBytesLen = 32
	minBytesLen     = 16
)

// Print random hex encoded secret suitable for SECRET_KEY
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "b", defaultBytesLen, "Number of random bytes in the secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *n < minBytesLen {
		return fmt.Errorf("secret has to be at least %d bytes long, got %d", minBytesLen, *n)
	}

	b := make([]byte, *n)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(out, hex.EncodeToString(b))
	return err
}
