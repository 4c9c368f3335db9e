package engine

import "strings"

// Capability is a bit set of what a provider engine can do.
type Capability uint32

const (
	CapabilityText Capability = 1 << iota
	CapabilityImage
	CapabilityDocument
	CapabilityCitation
	CapabilityOCR
	CapabilitySTT
	CapabilityTTS
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapabilityText, "text"},
	{CapabilityImage, "image"},
	{CapabilityDocument, "document"},
	{CapabilityCitation, "citation"},
	{CapabilityOCR, "ocr"},
	{CapabilitySTT, "stt"},
	{CapabilityTTS, "tts"},
}

// Has reports whether every bit of o is set.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) Strings() []string {
	var ret []string
	for _, n := range capabilityNames {
		if c.Has(n.c) {
			ret = append(ret, n.name)
		}
	}
	return ret
}

func (c Capability) String() string {
	return strings.Join(c.Strings(), "|")
}
