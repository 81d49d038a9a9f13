package glreload

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/soypat/sdfgraph/glbuild/glsllib"
)

// SceneMarker is the line of the default template replaced by generated scene source.
const SceneMarker = "//#SCENE"

//go:embed pathtracer.glsl
var pathtracerSrc string

// computeHeader declares the compute layout, the ping-pong images and the
// renderer uniforms. The scene library follows it.
const computeHeader = `#version 430
layout(local_size_x = 8, local_size_y = 8, local_size_z = 1) in;
layout(rgba32f, binding = 0) uniform readonly image2D u_prev;
layout(rgba32f, binding = 1) uniform writeonly image2D u_out;

uniform int u_frame;
uniform int u_samples;
uniform int u_bounces;
uniform float u_fov;
uniform vec3 u_cam_pos;
uniform vec3 u_cam_target;

`

// LocalSize is the compute work group size declared by the default template.
const LocalSize = 8

// Template is shader source with a single substitution point.
type Template struct {
	before string
	after  string
	ok     bool
}

// ParseTemplate splits text around marker. The marker must appear exactly once.
func ParseTemplate(text, marker string) (Template, error) {
	if marker == "" {
		return Template{}, errors.New("empty template marker")
	}
	n := strings.Count(text, marker)
	if n != 1 {
		return Template{}, fmt.Errorf("template marker %q found %d times, want 1", marker, n)
	}
	before, after, _ := strings.Cut(text, marker)
	return Template{before: before, after: after, ok: true}, nil
}

// DefaultTemplate returns the path tracer compute shader template. Scene
// source substituted into it must declare MATERIALS, map and cast_ray.
func DefaultTemplate() Template {
	t, err := ParseTemplate(computeHeader+glsllib.Scene()+"\n"+pathtracerSrc, SceneMarker)
	if err != nil {
		panic(err) // Embedded template is known good.
	}
	return t
}

// Substitute returns the template with src at the marker position.
func (t Template) Substitute(src string) string {
	var sb strings.Builder
	sb.Grow(len(t.before) + len(src) + len(t.after))
	sb.WriteString(t.before)
	sb.WriteString(src)
	sb.WriteString(t.after)
	return sb.String()
}

// IsZero reports whether the template was never parsed.
func (t Template) IsZero() bool { return !t.ok }
