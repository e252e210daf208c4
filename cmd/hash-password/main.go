package main

import (
	"fmt"
	"os"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run ./cmd/hash-password <password>\n")
		os.Exit(1)
	}

	hash, err := util.HashPassword(os.Args[1], util.DefaultPasswordCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
