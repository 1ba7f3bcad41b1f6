// Package security authenticates bearer tokens and evaluates operation
// security expressions.
//
// Expressions are compiled with expr-lang/expr:
//
//	is_granted('ROLE_ADMIN') or (is_granted('ROLE_USER') and object.owner == user)
//
// The environment exposes is_granted(role), the variables user, object and
// previous_object, and null as an alias of nil. Every expression must
// yield a bool. == and != are rewritten so that a user compares equal to
// its username; user.username and user.roles read the caller.
//
// A failed check returns *AccessDeniedError, which unwraps to
// ErrAccessDenied and maps to 401 for anonymous callers and 403 otherwise.
package security
