// Package sdk is a Go client for the geosuggest HTTP API.
//
//	c, _ := sdk.New("http://localhost:8080", sdk.WithAPIKey(key))
//	sugs, _ := c.Suggest(ctx, sdk.ModeAsset, "PIPE-10")
//	sel, _ := c.Select(ctx, sugs[0])
//
// Warm-up progress is streamed as server-sent events:
//
//	events, _ := c.Progress(ctx)
//	for ev := range events {
//	    fmt.Printf("%3.0f%% %s\n", ev.Percent, ev.Message)
//	}
package sdk
