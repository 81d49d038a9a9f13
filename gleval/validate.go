package gleval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
	"github.com/soypat/sdfgraph/glbuild/glsllib"
)

const validateHeader = "#version 300 es\nprecision highp float;\nprecision highp int;\n"

const validateMain = `
out vec4 fragColor;
void main() {
	Hit h = cast_ray(vec3(0.0), vec3(0.0, 0.0, 1.0));
	Material m = MATERIALS[max(h.mat, 0)];
	fragColor = vec4(m.albedo * h.d, 1.0);
}
`

// TranslatorValidator checks generated scene source by translating it with
// the ANGLE shader translator. It needs no GPU context.
type TranslatorValidator struct {
	mu sync.Mutex
	tr *gst.ShaderTranslator
}

// NewTranslatorValidator instantiates the translator runtime.
func NewTranslatorValidator(ctx context.Context) (*TranslatorValidator, error) {
	tr, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting shader translator: %w", err)
	}
	return &TranslatorValidator{tr: tr}, nil
}

// Validate wraps the scene source with the scene library and a fragment
// entry point that calls cast_ray and reads MATERIALS, then translates it.
func (v *TranslatorValidator) Validate(sceneSource string) error {
	_, err := v.Translate(sceneSource)
	return err
}

// Translate returns the desktop GLSL translation of the wrapped scene source
// and the names of the uniforms it kept.
func (v *TranslatorValidator) Translate(sceneSource string) (*Translation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	src := FragmentHarness(sceneSource)
	sh, err := v.tr.TranslateShader(src, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, err
	}
	t := &Translation{Code: sh.Code, Uniforms: make(map[string]string, len(sh.Variables))}
	for name, variable := range sh.Variables {
		t.Uniforms[name] = variable.MappedName
	}
	return t, nil
}

// Translation is the result of translating a scene with [TranslatorValidator].
type Translation struct {
	Code string
	// Uniforms maps source uniform names to their names in Code.
	Uniforms map[string]string
}

// FragmentHarness returns the GLSL ES 3.00 fragment shader used to validate sceneSource.
func FragmentHarness(sceneSource string) string {
	var sb strings.Builder
	sb.WriteString(validateHeader)
	sb.WriteString(glsllib.Scene())
	sb.WriteByte('\n')
	sb.WriteString(sceneSource)
	sb.WriteString(validateMain)
	return sb.String()
}
