// cmd/svm/commands/serve.go
package commands

import (
	"flag"
	"fmt"
	"net/http"

	"svm/internal/inspector"
)

// ServeCommand starts the websocket verification-progress inspector
// (SPEC_FULL §11). It serves a single endpoint, /progress, that every
// connected client receives every published Event on.
func ServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "localhost:8787", "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := inspector.NewServer()
	mux := http.NewServeMux()
	mux.HandleFunc("/progress", srv.Handler)

	fmt.Printf("svm serve: listening on ws://%s/progress\n", *addr)
	return http.ListenAndServe(*addr, mux)
}
