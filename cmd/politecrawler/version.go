package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// versionInfo describes the running binary.
type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// buildSetting returns the value of a debug.BuildInfo setting.
func buildSetting(key string) (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// getVersion returns the version string.
// Priority: ldflags > module version > "(devel)"
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// currentVersion collects ldflags values with VCS build settings as the
// fallback. The commit is shortened to seven characters.
func currentVersion() versionInfo {
	v := versionInfo{
		Version:   getVersion(),
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}
	if v.Commit == "" {
		v.Commit = "unknown"
		if rev, ok := buildSetting("vcs.revision"); ok && rev != "" {
			v.Commit = rev[:min(len(rev), 7)]
		}
	}
	if v.Date == "" {
		v.Date = "unknown"
		if t, ok := buildSetting("vcs.time"); ok && t != "" {
			v.Date = t
		}
	}
	return v
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, build date and Go version of politecrawler.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := currentVersion()
			out := cmd.OutOrStdout()

			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}

			fmt.Fprintf(out, "politecrawler version %s\n", v.Version)
			fmt.Fprintf(out, "  commit: %s\n", v.Commit)
			fmt.Fprintf(out, "  built:  %s\n", v.Date)
			fmt.Fprintf(out, "  go:     %s\n", v.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Print version information as JSON")
	return cmd
}
