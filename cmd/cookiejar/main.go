// "cookiejar" is the command line client of the cookiejar family.
package main

import (
	"os"

	"github.com/blockberries/cookiejar/cmd/cookiejar/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
