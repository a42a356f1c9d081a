/*
Package client provides a Go client library for the Horology scheduling
API.

It wraps the hand-written gRPC stubs in internal/rpc with a convenient,
idiomatic interface: connection management, tenant/credential header
injection, and typed methods for every Timer and Cluster RPC.

# Usage

	c, err := client.NewClient(client.Config{
		Addr:     "horology-1:8080",
		TenantID: "acme",
		APIKey:   "sk_live_...",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	timer, err := c.Schedule(ctx, client.ScheduleInput{
		Name:       "reminder",
		DurationMs: 60_000,
	})

# Streaming

	err := c.Stream(ctx, nil, "", func(ev *rpc.FireEventMessage) error {
		fmt.Println(ev.TimerID, ev.Kind)
		return nil
	})

# See Also

  - pkg/api for the server-side implementation this client talks to
  - internal/rpc for the wire message and service definitions
  - pkg/security for the CA bundle the client verifies the server against
*/
package client
