// Package main provides the entry point for mipssim.
// mipssim is a functional MIPS simulator with an ISA-exact register file.
//
// For the full CLI, use: go run ./cmd/mipssim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("mipssim - functional MIPS simulator")
	fmt.Println("")
	fmt.Println("Usage: mipssim [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to an arch configuration file (JSON or YAML)")
	fmt.Println("  -v         Verbose output")
	fmt.Println("  -trace     Log every step and register access")
	fmt.Println("  -max       Maximum instructions to execute")
	fmt.Println("  -dump      Print the registers on exit")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/mipssim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/mipssim' instead.")
	}
}
