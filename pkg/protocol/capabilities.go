package protocol

// Capability names an optional protocol feature a side may declare.
type Capability string

const (
	CapabilityTools        Capability = "tools"
	CapabilityResources    Capability = "resources"
	CapabilityPrompts      Capability = "prompts"
	CapabilityLogging      Capability = "logging"
	CapabilitySampling     Capability = "sampling"
	CapabilityRoots        Capability = "roots"
	CapabilityExperimental Capability = "experimental"
)

// Capabilities is the sparse feature set exchanged during initialize.
// A nil sub-struct means the feature is not declared. The same type
// describes both sides: servers declare tools, resources, prompts and
// logging, clients declare sampling and roots.
type Capabilities struct {
	Experimental map[string]interface{} `json:"experimental,omitempty"`
	Logging      *LoggingCapability     `json:"logging,omitempty"`
	Prompts      *PromptsCapability     `json:"prompts,omitempty"`
	Resources    *ResourcesCapability   `json:"resources,omitempty"`
	Tools        *ToolsCapability       `json:"tools,omitempty"`
	Sampling     *SamplingCapability    `json:"sampling,omitempty"`
	Roots        *RootsCapability       `json:"roots,omitempty"`
}

// ToolsCapability is present when the server offers tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability is present when the server offers resources.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability is present when the server offers prompts.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability is present when the server emits log notifications.
type LoggingCapability struct{}

// SamplingCapability is present when the client can sample from an LLM.
type SamplingCapability struct{}

// RootsCapability is present when the client exposes filesystem roots.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Has reports whether the named feature is declared.
func (c *Capabilities) Has(name Capability) bool {
	if c == nil {
		return false
	}
	switch name {
	case CapabilityTools:
		return c.Tools != nil
	case CapabilityResources:
		return c.Resources != nil
	case CapabilityPrompts:
		return c.Prompts != nil
	case CapabilityLogging:
		return c.Logging != nil
	case CapabilitySampling:
		return c.Sampling != nil
	case CapabilityRoots:
		return c.Roots != nil
	case CapabilityExperimental:
		return len(c.Experimental) > 0
	}
	return false
}

// Clone returns a deep copy that shares no pointers with c.
func (c Capabilities) Clone() Capabilities {
	return Merge(Capabilities{}, c)
}

// Merge returns the per-feature union of a and b. A feature declared on
// either side is declared in the result and boolean sub-options are OR-ed,
// so merging never drops anything already declared. Experimental keys from
// b replace the same keys from a. Neither input is modified.
func Merge(a, b Capabilities) Capabilities {
	var out Capabilities

	if a.Experimental != nil || b.Experimental != nil {
		out.Experimental = make(map[string]interface{}, len(a.Experimental)+len(b.Experimental))
		for k, v := range a.Experimental {
			out.Experimental[k] = v
		}
		for k, v := range b.Experimental {
			out.Experimental[k] = v
		}
	}

	if a.Logging != nil || b.Logging != nil {
		out.Logging = &LoggingCapability{}
	}
	if a.Sampling != nil || b.Sampling != nil {
		out.Sampling = &SamplingCapability{}
	}

	if a.Tools != nil || b.Tools != nil {
		out.Tools = &ToolsCapability{}
		if a.Tools != nil {
			out.Tools.ListChanged = a.Tools.ListChanged
		}
		if b.Tools != nil {
			out.Tools.ListChanged = out.Tools.ListChanged || b.Tools.ListChanged
		}
	}

	if a.Prompts != nil || b.Prompts != nil {
		out.Prompts = &PromptsCapability{}
		if a.Prompts != nil {
			out.Prompts.ListChanged = a.Prompts.ListChanged
		}
		if b.Prompts != nil {
			out.Prompts.ListChanged = out.Prompts.ListChanged || b.Prompts.ListChanged
		}
	}

	if a.Resources != nil || b.Resources != nil {
		out.Resources = &ResourcesCapability{}
		if a.Resources != nil {
			*out.Resources = *a.Resources
		}
		if b.Resources != nil {
			out.Resources.Subscribe = out.Resources.Subscribe || b.Resources.Subscribe
			out.Resources.ListChanged = out.Resources.ListChanged || b.Resources.ListChanged
		}
	}

	if a.Roots != nil || b.Roots != nil {
		out.Roots = &RootsCapability{}
		if a.Roots != nil {
			out.Roots.ListChanged = a.Roots.ListChanged
		}
		if b.Roots != nil {
			out.Roots.ListChanged = out.Roots.ListChanged || b.Roots.ListChanged
		}
	}

	return out
}
