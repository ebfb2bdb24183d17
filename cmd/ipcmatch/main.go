// ipcmatch maps incident descriptions to Indian Penal Code sections.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"ipcmatch/cmd/ipcmatch/cmd"
)

func main() {
	_ = godotenv.Load()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
