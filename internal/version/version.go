// internal/version/version.go
package version

import (
	"os"
	"time"

	"github.com/tamzrod/provisiond/internal/status"
)

// Set at link time:
//
//	-ldflags "-X .../version.CompileTime=15:04:05 -X .../version.CompileDate='Jan 02 2006'"
var (
	Version     = "dev"
	CompileTime = ""
	CompileDate = ""
)

// Build returns the identity reported by /OTAstatus.
// Without link-time values the executable's modification time stands in.
func Build() status.Build {
	b := status.Build{CompileTime: CompileTime, CompileDate: CompileDate}
	if b.CompileTime != "" && b.CompileDate != "" {
		return b
	}

	t, ok := executableTime()
	if !ok {
		return b
	}
	if b.CompileTime == "" {
		b.CompileTime = t.Format("15:04:05")
	}
	if b.CompileDate == "" {
		b.CompileDate = t.Format("Jan 02 2006")
	}
	return b
}

func executableTime() (time.Time, bool) {
	path, err := os.Executable()
	if err != nil {
		return time.Time{}, false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}
