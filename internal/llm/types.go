// Package llm is the typed LLM client (C2): prompt-in, either a raw string
// or a schema-validated typed value out, with ordered multi-vendor
// fallback and bounded per-vendor retry.
package llm

import "fmt"

// VendorModel names one fallback candidate: a vendor plus the model id to
// request from it.
type VendorModel struct {
	Vendor string
	Model  string
}

func (vm VendorModel) String() string {
	return fmt.Sprintf("%s/%s", vm.Vendor, vm.Model)
}

// OutputFormat hints the vendor adapter how to shape its request (plain
// text completion vs. a JSON-constrained one).
type OutputFormat int

const (
	OutputText OutputFormat = iota
	OutputJSON
)

// Message is one entry of the flat conversation submitted to a vendor.
type Message struct {
	Role    string
	Content string
}

// Request is what the client hands to a Vendor adapter for a single
// attempt.
type Request struct {
	Model    string
	System   string
	Messages []Message
	Format   OutputFormat
}
