// Package core holds the shared contracts of the bridge: configuration and
// its layered resolution, the error taxonomy, the event model, and the
// logging and metrics helpers used by the session and webhook packages.
// core must not depend on messaging adapters or HTTP transports.
package core
