package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// FileExtension is the suffix of files picked up when a directory is given.
const FileExtension = ".hcl"

func (cb *ConfigBuilder) GetBlocks(bodies []hcl.Body) (hcl.Blocks, hcl.Diagnostics) {
	diags := hcl.Diagnostics{}

	var blocks hcl.Blocks

	for _, body := range bodies {
		content, partialDiags := body.Content(configSchema)
		diags = diags.Extend(partialDiags)

		blocks = append(blocks, content.Blocks...)
	}

	return blocks, diags
}

// ParseConfigFiles parses each source into an HCL body. A source may be a
// file or directory path, a []byte holding HCL text, or an fs.FS.
func ParseConfigFiles(sources ...any) ([]hcl.Body, hcl.Diagnostics) {
	parser := hclparse.NewParser()
	var diags hcl.Diagnostics
	bodies := make([]hcl.Body, 0)

	for _, source := range sources {
		switch v := source.(type) {
		case string:
			info, err := os.Stat(v)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Failed to read config",
					Detail:   fmt.Sprintf("Error statting %s: %s", v, err),
				})
				continue
			}

			if info.IsDir() {
				newBodies, newDiags := parseDirectory(parser, v)
				diags = diags.Extend(newDiags)
				bodies = append(bodies, newBodies...)
			} else {
				file, parseDiags := parser.ParseHCLFile(v)
				diags = diags.Extend(parseDiags)
				if file != nil {
					bodies = append(bodies, file.Body)
				}
			}
		case []byte:
			file, parseDiags := parser.ParseHCL(v, fmt.Sprintf("<bytes@%p>", v))
			diags = diags.Extend(parseDiags)
			if file != nil {
				bodies = append(bodies, file.Body)
			}
		case fs.FS:
			newBodies, newDiags := parseFS(parser, v, "")
			diags = diags.Extend(newDiags)
			bodies = append(bodies, newBodies...)
		default:
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid source type",
				Detail:   fmt.Sprintf("Invalid source type: %T", v),
			})
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	return bodies, diags
}

func parseDirectory(parser *hclparse.Parser, dir string) ([]hcl.Body, hcl.Diagnostics) {
	return parseFS(parser, os.DirFS(dir), dir)
}

// parseFS parses every FileExtension file in fsys. root prefixes the file
// names used in diagnostics.
func parseFS(parser *hclparse.Parser, fsys fs.FS, root string) ([]hcl.Body, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	bodies := make([]hcl.Body, 0)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to access file or directory",
				Detail:   fmt.Sprintf("Error accessing %s: %s", path, err),
			})
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, FileExtension) {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to read file",
				Detail:   fmt.Sprintf("Error reading %s: %s", path, err),
			})
			return nil
		}

		file, parseDiags := parser.ParseHCL(content, filepath.Join(root, path))
		diags = diags.Extend(parseDiags)
		if file != nil {
			bodies = append(bodies, file.Body)
		}
		return nil
	})

	if err != nil {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Failed to walk directory",
			Detail:   fmt.Sprintf("Error walking directory: %s", err),
		})
	}

	return bodies, diags
}
