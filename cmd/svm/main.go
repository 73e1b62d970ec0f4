// cmd/svm/main.go
package main

import (
	"fmt"
	"os"

	"svm/cmd/svm/commands"
)

const version = "0.1.0"

// commandAliases mirrors the teacher's single-letter shortcuts, scaled
// down to this toolchain's six subcommands.
var commandAliases = map[string]string{
	"v": "verify",
	"l": "link",
	"r": "run",
	"s": "serve",
}

func main() {
	os.Exit(Run(os.Args[1:]))
}

// Run is main's logic factored out to return an exit code instead of
// calling os.Exit directly, so the testscript harness in main_test.go
// can drive it in-process (github.com/rogpeppe/go-internal/testscript's
// RunMain re-execs the test binary as "svm" and expects a func() int).
func Run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 1
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		if len(rest) > 0 {
			showCommandHelp(rest[0])
		} else {
			showUsage()
		}
		return 0
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Println("svm version " + version)
		return 0
	}

	var err error
	switch cmd {
	case "verify":
		err = commands.VerifyCommand(rest)
	case "link":
		err = commands.LinkCommand(rest)
	case "run":
		err = commands.RunCommand(rest)
	case "serve":
		err = commands.ServeCommand(rest)
	case "registry":
		err = commands.RegistryCommand(rest)
	case "init":
		err = commands.InitCommand(rest)
	default:
		fmt.Fprintf(os.Stderr, "svm: unknown command %q\n", cmd)
		showUsage()
		return 1
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func showUsage() {
	fmt.Println(`svm - a region-and-capability bytecode verifier/linker

Usage:
  svm verify <object-file>...     verify object files, report any error
  svm link <object-file>... -o out   verify and link into one image
  svm run <image>                  hand a linked image to the native VM
  svm registry <publish|list> ...  inspect the shared export registry
  svm serve [-addr host:port]      run the websocket progress inspector
  svm init <project-name>          scaffold a new svm.json project
  svm version                      print the version
  svm help [command]               show this message, or help for one command`)
}

func showCommandHelp(cmd string) {
	switch cmd {
	case "verify":
		fmt.Println("svm verify <object-file>...\n  Decode and verify each object file; print the first error found, if any.")
	case "link":
		fmt.Println("svm link <object-file>... -o <out>\n  Verify every object file and link them into a single image at <out>.")
	case "run":
		fmt.Println("svm run <image>\n  Pass a linked image to the native VM (requires a cgo build).")
	case "registry":
		fmt.Println("svm registry publish <uid> <label> <image>\nsvm registry list\n  Publish to or list from the shared export registry.")
	case "serve":
		fmt.Println("svm serve [-addr host:port]\n  Start the websocket verification-progress inspector.")
	case "init":
		fmt.Println("svm init <project-name>\n  Scaffold a new project directory with an svm.json manifest.")
	default:
		showUsage()
	}
}
