// Package link defines the contract of a GraphQL client pipeline: an ordered
// chain of links, each of which may observe an operation on its way out and
// its single response on the way back.
package link

// NextLink forwards an operation to the remainder of the chain.
type NextLink func(op *Operation) *Observable

// Link is a unit of the chain. A terminating link ignores forward and
// produces the response itself; forward is nil for the last link.
type Link interface {
	Request(op *Operation, forward NextLink) *Observable
}

// LinkFunc adapts a function to the Link interface.
type LinkFunc func(op *Operation, forward NextLink) *Observable

func (f LinkFunc) Request(op *Operation, forward NextLink) *Observable {
	return f(op, forward)
}

// From composes links into a single link. Operations flow through the links
// in the order given.
func From(links ...Link) Link {
	if len(links) == 1 {
		return links[0]
	}
	return LinkFunc(func(op *Operation, forward NextLink) *Observable {
		next := chain(links, forward)
		if next == nil {
			return nil
		}
		return next(op)
	})
}

func chain(links []Link, last NextLink) NextLink {
	if len(links) == 0 {
		return last
	}
	var next NextLink
	if len(links) > 1 || last != nil {
		next = chain(links[1:], last)
	}
	return func(op *Operation) *Observable {
		return links[0].Request(op, next)
	}
}

// Execute runs op through l and returns its response stream.
func Execute(l Link, op *Operation) *Observable {
	return l.Request(op, nil)
}
