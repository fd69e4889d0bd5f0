package main

import "github.com/MeKo-Tech/congestionmap/internal/cmd"

func main() {
	cmd.Execute()
}
