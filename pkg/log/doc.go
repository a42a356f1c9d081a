/*
Package log provides structured logging for Horology using zerolog.

A single global Logger is configured once via Init and shared across
packages; component and entity-scoped child loggers are created with
WithComponent, WithNodeID, WithTenant, and WithTimer rather than passed
around as constructor arguments.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	kernelLog := log.WithComponent("kernel")
	kernelLog.Info().Str("node_id", nodeID).Msg("kernel started")

Never log API key material or webhook bodies; tenant and timer IDs are
safe to log, credentials are not.
*/
package log
