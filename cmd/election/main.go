// Command election runs one single-decree Paxos election round among the
// council members listed in a JSON config file.
//
// Usage:
//
//	election <config.json>
//
// Exits 0 once the election completes, non-zero on a configuration
// error.
package main

import (
	"fmt"
	"os"

	"github.com/senutpal/council/internal/config"
	"github.com/senutpal/council/internal/election"
	"github.com/senutpal/council/internal/logging"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: election <config.json>")
		os.Exit(2)
	}

	members, err := config.Load(os.Args[1])
	if err != nil {
		logging.Error("MAIN", err.Error())
		os.Exit(1)
	}
	logging.Info("MAIN", fmt.Sprintf("Loaded %d council members from %s", len(members), os.Args[1]))

	if err := election.NewServer(members).Run(); err != nil {
		logging.Error("MAIN", err.Error())
		os.Exit(1)
	}
}
