// Package cmd is the command-line driver for the compiler.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/skx/pcc/compiler"
)

var (
	debug bool
	out   string
)

// rootCmd is "pcc <path>": compile a single source file and either print
// the generated NASM to stdout or write it to the file named by --out.
var rootCmd = &cobra.Command{
	Use:   "pcc <path>",
	Short: "pcc compiles a Pascal-subset source file to x86-32 NASM assembly",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Insert debug logging into the compilation run.")
	rootCmd.Flags().StringVarP(&out, "out", "o", "", "Write the generated NASM to this file instead of stdout.")
}

func runCompile(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	c := compiler.New(args[0])
	c.SetLogger(log)
	c.SetDebug(debug)

	asm, err := c.Compile()
	if err != nil {
		return fmt.Errorf("compiling %s: %w", args[0], err)
	}

	if out == "" {
		fmt.Print(asm)
		return nil
	}
	return os.WriteFile(out, []byte(asm), 0644)
}

// Execute runs the root command, exiting non-zero on failure. Called by
// main() - invoking gcc/nasm on the generated assembly remains the
// operator's job, not this command's.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
