package params

import "fmt"

const Version = "0.1.0"

// VersionWithCommit formats the build version for the version command.
func VersionWithCommit(gitCommit, gitDate string) string {
	version := Version
	if len(gitCommit) >= 8 {
		version += "-" + gitCommit[:8]
	}
	if gitDate != "" {
		version += "-" + gitDate
	}
	return fmt.Sprintf("kattest %s", version)
}
