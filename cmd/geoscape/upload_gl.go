//go:build gl

package main

import (
	"errors"
	"runtime"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/internal/gpu/glbuf"
	"github.com/Faultbox/geoscape/internal/logger"
)

var errNoContext = errors.New("no current GL context")

func init() {
	// GL calls must stay on the thread that owns the context.
	runtime.LockOSThread()
	newDeviceUpload = glUpload
}

// glUpload binds the tables to GL buffers. The embedding host must make a
// GL 4.3 context current on the main thread before the driver runs.
func glUpload(specs []gpu.BufferSpec) (func(gpu.View) error, func(), error) {
	if err := gl.Init(); err != nil {
		return nil, nil, err
	}
	version := gl.GetString(gl.VERSION)
	if version == nil {
		return nil, nil, errNoContext
	}
	logger.Info("GL context", zap.String("version", gl.GoStr(version)))

	u := glbuf.NewUploader(specs, nil)
	u.Allocate(specs)
	upload := func(v gpu.View) error {
		if err := u.UploadTables(v); err != nil {
			return err
		}
		return u.ResetCounters()
	}
	return upload, u.Release, nil
}
