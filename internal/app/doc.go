// Package app wires application dependencies for the CLI.
//
// It loads Config from YAML, builds the concrete stores, logger, metrics,
// discovery registry and ledger client, and exposes them via the Wire struct
// for commands to use. Services that need an unlocked key, such as the
// moment service, are built on demand with the caller's passphrase.
package app
