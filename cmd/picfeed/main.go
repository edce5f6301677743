// Command picfeed is the terminal client for a picfeed server.
package main

import (
	"fmt"
	"io"
	"os"
)

const fallbackMessage = "Something went wrong. Please run the command again."

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command. A panic anywhere below is replaced by a fallback
// message; nothing is retried.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(stderr, fallbackMessage)
			code = 2
		}
	}()

	root := newRootCmd(newApp(stdin, stdout))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
