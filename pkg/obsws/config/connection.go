package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/tsarna/obsws/pkg/obsws/auth"
	"github.com/tsarna/obsws/pkg/obsws/endpoint"
	"github.com/tsarna/obsws/pkg/obsws/events"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
	"github.com/tsarna/obsws/pkg/obsws/session"
)

// Connection is a named connection profile.
type Connection struct {
	Name                string         `hcl:"name,label"`
	URI                 string         `hcl:"uri"`
	RawDialTimeout      string         `hcl:"dial_timeout,optional"`
	RawSubscriptions    hcl.Expression `hcl:"event_subscriptions,optional"`
	IdentifyWithoutAuth bool           `hcl:"identify_without_auth,optional"`
	AuthScheme          string         `hcl:"auth_scheme,optional"`

	Endpoint           *endpoint.Endpoint
	DialTimeout        time.Duration
	EventSubscriptions uint32
	Sign               auth.SignatureFunc
}

func (c *Config) processConnection(block *hcl.Block) hcl.Diagnostics {
	conn := &Connection{}
	diags := gohcl.DecodeBody(block.Body, c.evalCtx, conn)
	if diags.HasErrors() {
		return diags
	}
	conn.Name = block.Labels[0]

	if _, exists := c.Connections[conn.Name]; exists {
		return diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Duplicate connection",
			Detail:   fmt.Sprintf("Connection %s is already defined", conn.Name),
			Subject:  &block.LabelRanges[0],
		})
	}

	ep, err := endpoint.Parse(conn.URI)
	if err != nil {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid connection URI",
			Detail:   err.Error(),
			Subject:  &block.DefRange,
		})
	}
	conn.Endpoint = ep

	conn.DialTimeout = session.DefaultDialTimeout
	if conn.RawDialTimeout != "" {
		d, durationDiags := parseDuration(conn.RawDialTimeout, &block.DefRange)
		diags = diags.Extend(durationDiags)
		conn.DialTimeout = d
	}

	subs, subsDiags := decodeSubscriptions(conn.RawSubscriptions, c.evalCtx)
	diags = diags.Extend(subsDiags)
	conn.EventSubscriptions = subs

	sign, err := auth.Lookup(conn.AuthScheme)
	if err != nil {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid auth scheme",
			Detail:   err.Error(),
			Subject:  &block.DefRange,
		})
	}
	conn.Sign = sign

	if diags.HasErrors() {
		return diags
	}

	c.Connections[conn.Name] = conn
	return diags
}

// decodeSubscriptions accepts either a number (the raw bitmask) or a list of
// category names such as "scenes" or "inputvolumemeters". A missing value
// yields the protocol default.
func decodeSubscriptions(expr hcl.Expression, evalCtx *hcl.EvalContext) (uint32, hcl.Diagnostics) {
	if expr == nil {
		return protocol.DefaultSubscriptions, nil
	}

	value, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}
	if value.IsNull() {
		return protocol.DefaultSubscriptions, diags
	}

	subject := expr.Range()
	invalid := func(detail string) hcl.Diagnostics {
		return diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid event_subscriptions",
			Detail:   detail,
			Subject:  &subject,
		})
	}

	ty := value.Type()
	switch {
	case ty == cty.Number:
		var mask uint32
		if err := gocty.FromCtyValue(value, &mask); err != nil {
			return 0, invalid(err.Error())
		}
		return mask, diags
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var mask uint32
		for it := value.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			if elem.IsNull() || !elem.Type().Equals(cty.String) {
				return 0, invalid("Subscription names must be strings")
			}
			bit, ok := events.Subscription(elem.AsString())
			if !ok {
				return 0, invalid(fmt.Sprintf("Unknown subscription %q", elem.AsString()))
			}
			mask |= bit
		}
		return mask, diags
	default:
		return 0, invalid(fmt.Sprintf("Expected a number or a list of names, got %s", ty.FriendlyName()))
	}
}

// SessionBuilder returns a session builder preset from the profile.
func (c *Connection) SessionBuilder() *session.SessionBuilder {
	return session.NewSession().
		WithEndpoint(c.Endpoint).
		WithDialTimeout(c.DialTimeout).
		WithEventSubscriptions(c.EventSubscriptions).
		WithSignatureFunc(c.Sign).
		WithIdentifyWithoutAuth(c.IdentifyWithoutAuth)
}
