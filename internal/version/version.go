package version

// Populated at build time via -ldflags.
// 在构建时通过 -ldflags 填充。
var (
	// Version is the semantic version of the build.
	// Version 是构建的语义化版本。
	Version = "dev"

	// GitCommit is the short commit hash the binary was built from.
	// GitCommit 是构建二进制文件时的短提交哈希。
	GitCommit = "unknown"

	// BuildTime is the UTC timestamp of the build.
	// BuildTime 是构建的 UTC 时间戳。
	BuildTime = "unknown"
)
