// Package version хранит сведения о сборке, заданные через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/pos/internal/version.version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo — сведения о сборке для /version и логов старта.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

func GetVersion() string { return version }

func GetCommit() string { return commit }

func GetDate() string { return date }

// Build собирает BuildInfo текущего бинарника.
func Build() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
