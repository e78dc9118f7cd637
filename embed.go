package blogadmin

import "embed"

// EmbeddedAssets holds the dashboard script and stylesheet served under
// /public.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
