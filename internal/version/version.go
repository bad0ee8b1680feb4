package version

// Build metadata, overridden at release time using:
//
//	go build -ldflags="-X 'github.com/awahab1116/video-streaming/internal/version.Version=v1.0.0'"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
