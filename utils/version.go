package utils

// Build metadata, set at link time via -ldflags.
var (
	Tag        string
	GitHash    string
	BuildStamp string
)
