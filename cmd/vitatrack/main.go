package main

import "github.com/mr1hm/go-vitatrack/cmd/vitatrack/cmd"

func main() {
	cmd.Execute()
}
