// Package fastload embeds the fastload gallery and ControlNet control list
// tooling in a Go program, without running the HTTP server.
//
// # Gallery
//
//	client, _ := fastload.New(ctx,
//	    fastload.WithPresets(map[string]string{"txt2img": "outputs/txt2img-images"}),
//	)
//	defer client.Close()
//	page, _ := client.Gallery().Load(ctx, fastload.Query{Preset: "txt2img"})
//	page, _ = client.Gallery().Load(ctx, fastload.Query{
//	    Preset:   "txt2img",
//	    LastPath: page.Path,
//	    Filters:  []string{"model - control_v11p_sd15_canny"},
//	})
//
// # Control lists
//
//	units, _ := client.ControlUnits().Load(ctx, "outputs/00001.png")
//	files, _ := client.ControlUnits().Save(ctx, "outputs/00002.png", units, fastload.SaveSidecar)
//
// Callers act with the access level set by WithAccessLevel (default: manual).
package fastload
