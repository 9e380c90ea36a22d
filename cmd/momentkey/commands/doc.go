// Package commands defines the momentkey CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init               Create the coordinator identity and provisioning issuer
//   - fingerprint        Print the coordinator identity fingerprint
//   - token provision    Issue a new presence token
//   - token list         List provisioned tokens
//   - moment create      Run the group agreement and record a moment
//   - moment seal        Encrypt a note or media file under a moment
//   - moment open        Reopen a moment and decrypt its artifacts
//   - moment list        List recorded moments
//   - moment commit      Publish a redacted commitment to the ledger
//
// # Implementation
//
// The root command loads the YAML config and builds a dependency graph
// (stores, logger, metrics, ledger client) before any subcommand runs.
// Presence tokens are simulated in-process from the token store; each
// command unlocks only the tokens it was told are present.
package commands
