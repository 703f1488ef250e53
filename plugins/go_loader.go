package plugins

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/apptree/internal/extension"
)

const goDeclarationFuncName = "Extensions"

// LoadGoFile evaluates a Go source file and collects the declarations
// returned by its Extensions() function.
//
// The function must have the signature Extensions() ([]map[string]any, error).
// Each map uses the same keys as the YAML form.
func LoadGoFile(path string) ([]DeclarationFile, error) {
	code, err := readDeclarationFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goDeclarationFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s() ([]map[string]any, error): %w", path, goDeclarationFuncName, err)
	}
	raws, err := invokeDeclarationFunc(fnValue)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("plugin: %s: %s returned no extensions", path, goDeclarationFuncName)
	}
	decls := make([]extension.Declaration, 0, len(raws))
	for idx, raw := range raws {
		decl, err := decodeDeclarationMap(raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s extension[%d]: %w", path, idx, err)
		}
		decls = append(decls, decl)
	}
	return finish(path, decls)
}

// decodeDeclarationMap round-trips a loose map through YAML so Go, HCL and
// YAML declarations share one set of field rules.
func decodeDeclarationMap(raw map[string]any) (extension.Declaration, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return extension.Declaration{}, err
	}
	var decl extension.Declaration
	if err := yaml.Unmarshal(payload, &decl); err != nil {
		return extension.Declaration{}, err
	}
	return decl, nil
}

func invokeDeclarationFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", goDeclarationFuncName)
	}
	fn := value
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDeclarationFuncName)
	}
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must not take arguments", goDeclarationFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goDeclarationFuncName)
	}
	declsVal := results[0]
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", goDeclarationFuncName)
	}
	if decls, ok := declsVal.Interface().([]map[string]any); ok {
		return decls, nil
	}
	if declsVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goDeclarationFuncName)
	}
	result := make([]map[string]any, declsVal.Len())
	for i := 0; i < declsVal.Len(); i++ {
		m, ok := declsVal.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goDeclarationFuncName, i)
		}
		result[i] = m
	}
	return result, nil
}
