package eventbus

import (
	"context"

	"github.com/seb7887/uibus/idgen"
)

// Owner identifies the component a subscription (or an in-flight request)
// belongs to. Owners are compared by pointer identity: two owners with the
// same name are still distinct.
type Owner struct {
	id   string
	name string
}

// NewOwner creates a fresh owner identity. name is only used in logs.
func NewOwner(name string) *Owner {
	return &Owner{
		id:   idgen.NewULID(),
		name: name,
	}
}

// ID is the owner's unique id, also used as its scheduler key.
func (o *Owner) ID() string {
	if o == nil {
		return ""
	}
	return o.id
}

// Name is the name given to NewOwner.
func (o *Owner) Name() string {
	if o == nil {
		return ""
	}
	return o.name
}

// String renders name/id for logs.
func (o *Owner) String() string {
	if o == nil {
		return "<nil>"
	}
	return o.name + "/" + o.id
}

type ownerKey struct{}

// WithOwner returns ctx carrying owner.
func WithOwner(ctx context.Context, owner *Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner a handler is being invoked for.
func OwnerFromContext(ctx context.Context) (*Owner, bool) {
	o, ok := ctx.Value(ownerKey{}).(*Owner)
	return o, ok && o != nil
}
