// cmd/provisiond/main.go
package main

import (
	"os"

	"github.com/tamzrod/provisiond/cmd/provisiond/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
