package plugins

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/kingrea/apptree/internal/extension"
)

// hclDeclarationFile is the top-level shape of an *.hcl declaration file.
type hclDeclarationFile struct {
	Extensions []*hclExtension `hcl:"extension,block"`
}

// hclExtension mirrors one `extension "<id>" { ... }` block.
type hclExtension struct {
	ID       string          `hcl:"id,label"`
	AttachTo *hclAttachPoint `hcl:"attach_to,block"`
	Disabled *bool           `hcl:"disabled,optional"`
	Output   []string        `hcl:"output,optional"`
	Config   hcl.Expression  `hcl:"config,optional"`
}

type hclAttachPoint struct {
	ID    string `hcl:"id"`
	Input string `hcl:"input"`
}

// ParseDeclarationsHCL decodes the extension blocks in an HCL payload.
// filename is used only for diagnostics.
func ParseDeclarationsHCL(data []byte, filename string) ([]extension.Declaration, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("plugin: parse %s: %w", filename, diags)
	}

	var parsed hclDeclarationFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("plugin: decode %s: %w", filename, diags)
	}
	if len(parsed.Extensions) == 0 {
		return nil, fmt.Errorf("plugin: %s declares no extensions", filename)
	}

	decls := make([]extension.Declaration, 0, len(parsed.Extensions))
	for _, block := range parsed.Extensions {
		decl, err := block.declaration()
		if err != nil {
			return nil, fmt.Errorf("plugin: %s extension %q: %w", filename, block.ID, err)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// LoadHCLFile reads an HCL file from disk and returns its validated declarations.
func LoadHCLFile(path string) ([]DeclarationFile, error) {
	data, err := readDeclarationFile(path)
	if err != nil {
		return nil, err
	}
	decls, err := ParseDeclarationsHCL(data, path)
	if err != nil {
		return nil, err
	}
	return finish(path, decls)
}

func (b *hclExtension) declaration() (extension.Declaration, error) {
	decl := extension.Declaration{
		ID:     b.ID,
		Output: b.Output,
	}
	if b.AttachTo != nil {
		decl.AttachTo = extension.AttachPoint{ID: b.AttachTo.ID, Input: b.AttachTo.Input}
	}
	if b.Disabled != nil {
		decl.Disabled = *b.Disabled
	}
	if b.Config == nil {
		return decl, nil
	}
	value, diags := b.Config.Value(nil)
	if diags.HasErrors() {
		return extension.Declaration{}, fmt.Errorf("config: %w", diags)
	}
	if value.IsNull() {
		return decl, nil
	}
	if !value.Type().IsObjectType() && !value.Type().IsMapType() {
		return extension.Declaration{}, fmt.Errorf("config must be an object, got %s", value.Type().FriendlyName())
	}
	native, err := ctyToNative(value)
	if err != nil {
		return extension.Declaration{}, fmt.Errorf("config: %w", err)
	}
	decl.Config, _ = native.(map[string]any)
	return decl, nil
}

// ctyToNative converts a cty value to plain Go values: strings, bools,
// ints for whole numbers, float64 otherwise, slices and maps.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known at load time")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
}
