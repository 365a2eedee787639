package domain

// KeyPrefix namespaces every key written to the shared key-value store.
const KeyPrefix = "fastload:"

// DefaultPageSize is the number of images shown per gallery page.
const DefaultPageSize = 36

// SidecarExt is the extension of a standalone control list file.
const SidecarExt = ".cni"

// ParametersKey is the image text field holding generation parameters.
const ParametersKey = "parameters"

// WellKnownAttributes are the control unit attributes always offered as filter keys.
var WellKnownAttributes = []string{
	"preprocessor",
	"model",
	"weight",
	"starting/ending",
	"resize mode",
	"pixel perfect",
	"control mode",
	"preprocessor params",
}
