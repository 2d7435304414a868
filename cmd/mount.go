// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jacobsa/syncutil"
	"github.com/mirrorfuse/mirrorfuse/cfg"
	"github.com/mirrorfuse/mirrorfuse/internal/accesslog"
	"github.com/mirrorfuse/mirrorfuse/internal/clock"
	"github.com/mirrorfuse/mirrorfuse/internal/logger"
	"github.com/mirrorfuse/mirrorfuse/internal/mount"
	"github.com/mirrorfuse/mirrorfuse/internal/passthroughfs"
	"github.com/mirrorfuse/mirrorfuse/internal/perms"
	"github.com/mirrorfuse/mirrorfuse/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount <source> <mountpoint>",
	Short: "Mount source at mountpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.Rationalize(&newConfig); err != nil {
			return err
		}
		if err := cfg.ValidateConfig(&newConfig); err != nil {
			return err
		}

		return runMount(args[0], args[1], &newConfig)
	},
}

func runMount(source, mountPoint string, c *cfg.Config) (err error) {
	source, err = util.GetResolvedPath(source)
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}
	mountPoint, err = util.GetResolvedPath(mountPoint)
	if err != nil {
		return fmt.Errorf("resolving mount point: %w", err)
	}

	if !c.Mount.Foreground {
		args := append(append([]string{}, os.Args[1:]...), "--foreground")
		return mount.Daemonize(args)
	}

	if err := logger.Init(c.Logging); err != nil {
		return fmt.Errorf("logger.Init: %w", err)
	}
	if c.Debug.ExitOnInvariantViolation {
		syncutil.EnableInvariantChecking()
	}

	if fi, statErr := os.Stat(source); statErr != nil || !fi.IsDir() {
		return fmt.Errorf("source %q is not an accessible directory", source)
	}
	if fi, statErr := os.Stat(mountPoint); statErr != nil || !fi.IsDir() {
		return fmt.Errorf("mount point %q is not an accessible directory", mountPoint)
	}
	if sourceDev, mountDev, ok := sameDevice(source, mountPoint); ok && sourceDev != mountDev {
		logger.Warnf("source %q and mount point %q are on different devices", source, mountPoint)
	}

	uid, _, err := perms.MyUserAndGroup()
	if err != nil {
		return fmt.Errorf("perms.MyUserAndGroup: %w", err)
	}
	if uid == 0 && c.Mount.Uid < 0 {
		fmt.Fprintln(os.Stdout, "WARNING: mirrorfuse invoked as root; every operation on the source tree runs with root privileges.")
	}

	var reg *prometheus.Registry
	if c.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if serveErr := http.ListenAndServe(c.Metrics.Addr, mux); serveErr != nil {
				logger.Errorf("metrics server: %v", serveErr)
			}
		}()
	}

	rec, err := accesslog.New(reg)
	if err != nil {
		return fmt.Errorf("accesslog.New: %w", err)
	}

	fsys, err := passthroughfs.New(passthroughfs.Config{
		SourceRoot: source,
		MountPoint: mountPoint,
		Uid:        c.Mount.Uid,
		Gid:        c.Mount.Gid,
		FileMode:   uint32(c.Mount.FileMode),
		DirMode:    uint32(c.Mount.DirMode),
	}, clock.RealClock(), rec, reg)
	if err != nil {
		return fmt.Errorf("passthroughfs.New: %w", err)
	}

	mountCfg := mount.Config(c.AppName, c.Logging, c.Mount.Options)

	logger.Infof("mounting %q at %q", source, mountPoint)
	mfs, err := mount.Mount(mountPoint, fsys, mountCfg)
	if err != nil {
		_ = mount.SignalMountOutcome(err)
		return fmt.Errorf("mount.Mount: %w", err)
	}

	logger.Infof("mounted successfully")
	_ = mount.SignalMountOutcome(nil)

	joinErr := mfs.Join(context.Background())
	rec.LogSummary()
	return joinErr
}

// sameDevice reports the device numbers of a and b along with whether both
// stats succeeded. On failure ok is false and the caller should skip the
// comparison rather than treat it as a hard error.
func sameDevice(a, b string) (uint64, uint64, bool) {
	fa, err := os.Stat(a)
	if err != nil {
		return 0, 0, false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return 0, 0, false
	}
	da, ok := deviceOf(fa)
	if !ok {
		return 0, 0, false
	}
	db, ok := deviceOf(fb)
	if !ok {
		return 0, 0, false
	}
	return da, db, true
}
