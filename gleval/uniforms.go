// Package gleval runs generated scene pipelines on the GPU and checks scene
// source with a shader translator before it reaches the driver.
package gleval

import (
	"errors"

	"github.com/soypat/geometry/ms3"
)

var errNoCGO = errors.New("GPU rendering requires CGo and is not supported on TinyGo")

// Uniforms are the per-frame inputs of the path tracer compute shader.
type Uniforms struct {
	Time        float32
	StepsPerRay int
	Samples     int
	Bounces     int
	// FOV is the vertical field of view in radians.
	FOV       float32
	CamPos    ms3.Vec
	CamTarget ms3.Vec
}

// WorkGroups returns the compute dispatch size covering a width x height image
// with work groups of local x local invocations.
func WorkGroups(width, height, local int) (x, y int) {
	return (width + local - 1) / local, (height + local - 1) / local
}
