// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zegemm

import (
	"fmt"
	"runtime/debug"
)

const root = "github.com/LynnColeArt/zegemm"

// Version returns the module version of zegemm and its checksum, as
// recorded in the running binary. Both are empty when the binary was built
// without module support.
//
// A replaced module reports "old=>new"; an unversioned replacement is
// marked with a trailing "*".
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		r := m.Replace
		switch {
		case r == nil:
			return m.Version, m.Sum
		case r.Version == "" && r.Path == "":
			return m.Version + "*", m.Sum + "*"
		case r.Version == "":
			return fmt.Sprintf("%s=>%s", m.Version, r.Path), r.Sum
		case r.Path == "":
			return fmt.Sprintf("%s=>%s", m.Version, r.Version), r.Sum
		default:
			return fmt.Sprintf("%s=>%s %s", m.Version, r.Path, r.Version), r.Sum
		}
	}
	return "", ""
}

// BuildDescription is a one-line summary of the running binary for
// -version flags: module version, VCS revision when stamped, Go version.
func BuildDescription() string {
	version, _ := Version()
	if version == "" {
		version = "(devel)"
	}
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	desc := version
	var revision, modified string
	for _, s := range b.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if revision != "" {
		if len(revision) > 12 {
			revision = revision[:12]
		}
		desc += " " + revision
		if modified == "true" {
			desc += "-dirty"
		}
	}
	return desc + " " + b.GoVersion
}
