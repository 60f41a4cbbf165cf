package main

import (
	"github.com/crawlctl/crawlctl/cmd/crawlctl"
)

func main() {
	cmd.Execute()
}
