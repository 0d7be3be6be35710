// Command golearn is a terminal client for the goLearn backend.
//
// Configuration comes from GOLEARN_* environment variables. The session is kept in the
// token store named by GOLEARN_TOKEN_STORE_BACKEND, defaulting to a file under the user
// config directory so that it survives between invocations.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}
