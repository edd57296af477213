package config

import (
	"fmt"

	"github.com/hashicorp/go-cty-funcs/cidr"
	"github.com/hashicorp/go-cty-funcs/crypto"
	"github.com/hashicorp/go-cty-funcs/encoding"
	"github.com/hashicorp/go-cty-funcs/filesystem"
	"github.com/hashicorp/go-cty-funcs/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/userfunc"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// GetStandardLibraryFunctions returns the functions available to every
// config expression.
func GetStandardLibraryFunctions() map[string]function.Function {
	return map[string]function.Function{
		// Strings
		"upper":     stdlib.UpperFunc,
		"lower":     stdlib.LowerFunc,
		"title":     stdlib.TitleFunc,
		"substr":    stdlib.SubstrFunc,
		"strlen":    stdlib.StrlenFunc,
		"split":     stdlib.SplitFunc,
		"join":      stdlib.JoinFunc,
		"chomp":     stdlib.ChompFunc,
		"trim":      stdlib.TrimFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"replace":   stdlib.ReplaceFunc,
		"regex":     stdlib.RegexFunc,
		"format":    stdlib.FormatFunc,

		// Numbers
		"max":   stdlib.MaxFunc,
		"min":   stdlib.MinFunc,
		"floor": stdlib.FloorFunc,
		"ceil":  stdlib.CeilFunc,

		// Collections
		"coalesce": stdlib.CoalesceFunc,
		"concat":   stdlib.ConcatFunc,
		"contains": stdlib.ContainsFunc,
		"distinct": stdlib.DistinctFunc,
		"flatten":  stdlib.FlattenFunc,
		"keys":     stdlib.KeysFunc,
		"length":   stdlib.LengthFunc,
		"lookup":   stdlib.LookupFunc,
		"merge":    stdlib.MergeFunc,
		"values":   stdlib.ValuesFunc,

		// Encoding
		"jsondecode":   stdlib.JSONDecodeFunc,
		"jsonencode":   stdlib.JSONEncodeFunc,
		"base64decode": encoding.Base64DecodeFunc,
		"base64encode": encoding.Base64EncodeFunc,
		"urlencode":    encoding.URLEncodeFunc,

		// Conversion
		"tostring": stdlib.MakeToFunc(cty.String),
		"tonumber": stdlib.MakeToFunc(cty.Number),
		"tobool":   stdlib.MakeToFunc(cty.Bool),
		"tolist":   stdlib.MakeToFunc(cty.List(cty.DynamicPseudoType)),

		// Network
		"cidrhost":    cidr.HostFunc,
		"cidrnetmask": cidr.NetmaskFunc,

		// Crypto
		"md5":    crypto.Md5Func,
		"sha1":   crypto.Sha1Func,
		"sha256": crypto.Sha256Func,
		"sha512": crypto.Sha512Func,

		// Filesystem
		"abspath":    filesystem.AbsPathFunc,
		"basename":   filesystem.BasenameFunc,
		"dirname":    filesystem.DirnameFunc,
		"pathexpand": filesystem.PathExpandFunc,
		"file":       filesystem.MakeFileFunc("", false),

		// UUID
		"uuidv4": uuid.V4Func,
		"uuidv5": uuid.V5Func,
	}
}

// ExtractUserFunctions decodes "function" blocks from bodies and returns the
// functions together with the remaining bodies. The evaluation context is
// resolved lazily so user functions can call each other and the standard
// library.
func ExtractUserFunctions(bodies []hcl.Body, evalCtx func() *hcl.EvalContext) (map[string]function.Function, []hcl.Body, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	remainingBodies := make([]hcl.Body, 0, len(bodies))
	allFuncs := make(map[string]function.Function)

	for _, body := range bodies {
		funcs, remainingBody, funcDiags := userfunc.DecodeUserFunctions(body, "function", evalCtx)
		diags = diags.Extend(funcDiags)
		if funcDiags.HasErrors() {
			continue
		}

		remainingBodies = append(remainingBodies, remainingBody)

		for name, fn := range funcs {
			if _, exists := allFuncs[name]; exists {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate function",
					Detail:   fmt.Sprintf("Function %s is already defined", name),
				})
				continue
			}
			allFuncs[name] = fn
		}
	}

	return allFuncs, remainingBodies, diags
}
