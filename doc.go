// Package geosuggest provides as-you-type search over feature attribute values
// of a map's layers, with a second mode that delegates to an external geocoder.
//
// An Engine replicates the configured search fields of every enabled layer into
// an in-memory n-gram index, answers index misses with live field-scoped queries,
// and memoizes suggestion lists in a small LRU.
//
//	cfg, _ := geosuggest.NewLayerConfig("ssGravityMain", []string{"AssetID"}, "", true)
//	eng, _ := geosuggest.New(m, []geosuggest.LayerConfig{cfg}, geosuggest.WithLogger(logger))
//	defer eng.Close()
//	eng.Warm(ctx)
//	sugs, _ := eng.Suggest(ctx, geosuggest.ModeAsset, "1042")
//
// Interactive search boxes use a Session, which debounces keystrokes and drops
// results of superseded queries:
//
//	s := eng.NewSession(geosuggest.ModeAsset, func(u geosuggest.Update) { render(u.Suggestions) })
//	s.Type("PIPE-1")
package geosuggest
