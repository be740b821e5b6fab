package derivation

import "nixtract/internal/narinfo"

// Record is everything nixtract extracts for a single derivation. It is
// emitted as one JSON object per line; pointer fields serialise to null when
// the evaluator could not produce a value.
type Record struct {
	Name            string           `json:"name"`
	ParsedName      ParsedName       `json:"parsed_name"`
	AttributePath   string           `json:"attribute_path"`
	DerivationPath  *string          `json:"derivation_path"`
	OutputPath      *string          `json:"output_path"`
	Outputs         []Output         `json:"outputs"`
	NixpkgsMetadata NixpkgsMetadata  `json:"nixpkgs_metadata"`
	Src             *Source          `json:"src"`
	BuildInputs     []BuildInput     `json:"build_inputs"`
	NarInfo         *narinfo.NarInfo `json:"nar_info,omitempty"`
}

// ParsedName is the name/version split performed by builtins.parseDrvName.
type ParsedName struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Output is one named output of a (possibly multi-output) derivation.
type Output struct {
	Name       string  `json:"name"`
	OutputPath *string `json:"output_path"`
}

// NixpkgsMetadata is derivation metadata defined by nixpkgs conventions.
type NixpkgsMetadata struct {
	Pname       *string   `json:"pname"`
	Version     *string   `json:"version"`
	Description *string   `json:"description"`
	Homepage    *string   `json:"homepage"`
	Broken      *bool     `json:"broken"`
	Licenses    []License `json:"licenses"`
}

// License is one entry of the normalised meta.license list. Not every license
// in nixpkgs carries an SPDX id.
type License struct {
	SpdxID   *string `json:"spdx_id"`
	FullName *string `json:"full_name"`
}

// Source describes where the derivation's src was fetched from, when it is a
// known git reference.
type Source struct {
	GitRepoURL string `json:"git_repo_url"`
	Rev        string `json:"rev"`
}

// Build input types reported by the describer. Attributes outside the three
// classical kinds keep their raw attribute key as the type.
const (
	TypeBuildInput           = "build_input"
	TypePropagatedBuildInput = "propagated_build_input"
	TypeNativeBuildInput     = "native_build_input"
)

// BuildInput is one inbound dependency edge of a derivation. AttributePath is
// nil when the dependency could not be located in the flake's package tree, in
// which case the edge is emitted but not followed.
type BuildInput struct {
	BuildInputType string  `json:"build_input_type"`
	AttributePath  *string `json:"attribute_path"`
	OutputPath     *string `json:"output_path"`
}
