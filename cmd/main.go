package main

import (
	"document-qa/internal/cli"
)

func main() {
	cli.Execute()
}
