package access

type Kind int

const (
	Allow Kind = iota
	DenyRedirect
	DenyUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case DenyRedirect:
		return "deny_redirect"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	}
	return "unknown"
}

// Decision is the outcome of Gate.Authorize. Target is only set for DenyRedirect.
type Decision struct {
	Kind   Kind
	Target string
}

func (d Decision) Allowed() bool { return d.Kind == Allow }
