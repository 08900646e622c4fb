// This is the main-driver for our compiler.

package main

import "github.com/skx/pcc/cmd"

func main() {
	cmd.Execute()
}
