// Package domain defines the core data models, error taxonomy and interfaces
// shared across momentkey. It contains plain types (wire/state) and contracts
// (interfaces) only; no cryptography or I/O lives here.
package domain
