package main

import (
	"github.com/hashgraph-online/certificate-sdk-go/cmd/certanchor/cmd"
)

func main() {
	cmd.Execute()
}
