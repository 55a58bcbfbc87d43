package tracing

// Span attribute keys.
const (
	AttrDomainID   = "domain.id"
	AttrDomainType = "domain.type"
	AttrNameLen    = "domain.name_len"
	AttrEventSeq   = "event.seq"
	AttrEventKind  = "event.kind"
	AttrFlowToken  = "flow.token"
	AttrErrorCode  = "error.code"
)

// Span names.
const (
	SpanInitialize   = "registry.initialize"
	SpanCreateDomain = "registry.create_domain"
	SpanUpdateDomain = "registry.update_domain"
	SpanLookup       = "registry.lookup"
	SpanPublish      = "registry.publish"
)
