package config

import "github.com/hashicorp/hcl/v2"

var blockSchema = []hcl.BlockHeaderSchema{
	{Type: "const"},
	{Type: "logging"},
	{Type: "connection", LabelNames: []string{"name"}},
}

var configSchema = &hcl.BodySchema{
	Blocks: blockSchema,
}
