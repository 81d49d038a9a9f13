// Package glsllib holds the GLSL library generated scene code is compiled against.
package glsllib

import (
	_ "embed"
)

//go:embed scene.glsl
var sceneSrc string

// Scene returns the scene library source. It declares the Hit and Material
// structs, the uniforms u_time and u_steps_per_ray, the MHD and FP marching
// constants and the functions called by generated code:
//
//	float sdSphere(vec3 p, float r)
//	float sdCube(vec3 p, vec3 b)
//	vec3 move(vec3 p, vec3 offset)
//	vec3 rot3D(vec3 p, vec3 r)
//	float scale_correction(float d, float s)
//	Hit opUnion(Hit a, Hit b)
//	Hit opSmoothUnion(Hit a, Hit b, float k)
//
// The source is valid both as GLSL 4.30 and GLSL ES 3.00.
func Scene() string { return sceneSrc }
