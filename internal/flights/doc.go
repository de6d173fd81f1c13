// Package flights defines the domain model shared across the service:
// flight offers, search criteria and options, progress state, the error
// taxonomy, and the interfaces implemented by source adapters and
// collaborators.
package flights
