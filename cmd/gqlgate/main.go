package main

import "github.com/vietddude/gqlgate/internal/cli"

func main() {
	cli.Execute()
}
