package providers

type BuiltInType = string

const (
	LocalType BuiltInType = "local"
	S3Type    BuiltInType = "s3"
	HTTPType  BuiltInType = "http"
)

// RegisterBuiltins registers all built-in source types on r by default
// or only the specific ones if types are provided
func (r *Registry) RegisterBuiltins(types ...BuiltInType) {
	if len(types) == 0 {
		types = []BuiltInType{LocalType, S3Type, HTTPType}
	}

	for _, t := range types {
		switch t {
		case LocalType:
			r.Register(LocalType, decode[LocalSource])
		case S3Type:
			r.Register(S3Type, decode[S3Source])
		case HTTPType:
			r.Register(HTTPType, decode[HTTPSource])
		}
	}
}

// RegisterBuiltins registers built-in source types on the default registry
func RegisterBuiltins(types ...BuiltInType) {
	defaultRegistry.RegisterBuiltins(types...)
}
