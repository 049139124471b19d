package buildinfo

import "runtime/debug"

// Set with -ldflags "-X routeplanner/internal/buildinfo.Version=..."
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    info := map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
    if bi, ok := debug.ReadBuildInfo(); ok {
        info["go"] = bi.GoVersion
        if Commit == "" {
            for _, s := range bi.Settings {
                if s.Key == "vcs.revision" { info["commit"] = s.Value }
            }
        }
    }
    return info
}
