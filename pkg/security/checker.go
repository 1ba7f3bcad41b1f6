package security

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// ErrAccessDenied is matched by every authorization failure
var ErrAccessDenied = errors.New("access denied")

// Messages of the default denials
const (
	MessageAuthenticationRequired = "Full authentication is required to access this resource."
	MessageAccessDenied           = "Access Denied."
)

// AccessDeniedError is returned when an expression does not grant access.
// Authenticated tells a forbidden caller apart from an anonymous one.
type AccessDeniedError struct {
	Message       string
	Authenticated bool
}

func (e *AccessDeniedError) Error() string {
	return e.Message
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}

// StatusCode is 403 for authenticated callers and 401 otherwise
func (e *AccessDeniedError) StatusCode() int {
	if e.Authenticated {
		return 403
	}
	return 401
}

// RoleHierarchy lists the roles each role implies
type RoleHierarchy map[string][]string

// DefaultHierarchy grants ROLE_USER to admins
var DefaultHierarchy = RoleHierarchy{"ROLE_ADMIN": {"ROLE_USER"}}

// Checker evaluates operation security expressions. Compiled expressions
// are cached by source.
type Checker struct {
	hierarchy RoleHierarchy

	mu    sync.RWMutex
	exprs map[string]*Expression
}

// NewChecker creates a checker; a nil hierarchy uses DefaultHierarchy
func NewChecker(hierarchy RoleHierarchy) *Checker {
	if hierarchy == nil {
		hierarchy = DefaultHierarchy
	}
	return &Checker{hierarchy: hierarchy, exprs: make(map[string]*Expression)}
}

// CheckResource compiles every security expression of a resource
func (c *Checker) CheckResource(res *metadata.Resource) error {
	if res.Security != "" {
		if _, err := c.compile(res.Security); err != nil {
			return fmt.Errorf("resource %s: %w", res.Name, err)
		}
	}
	for _, op := range res.Operations {
		for _, source := range []string{op.Security, op.SecurityPostDenormalize} {
			if source == "" {
				continue
			}
			if _, err := c.compile(source); err != nil {
				return fmt.Errorf("resource %s operation %s: %w", res.Name, op.Kind, err)
			}
		}
	}
	return nil
}

// HasRole reports whether user holds role directly or through the hierarchy
func (c *Checker) HasRole(user *User, role string) bool {
	switch role {
	case "PUBLIC_ACCESS", "IS_AUTHENTICATED_ANONYMOUSLY":
		return true
	case "IS_AUTHENTICATED_FULLY", "IS_AUTHENTICATED":
		return user != nil
	}
	if user == nil {
		return false
	}
	seen := make(map[string]bool)
	queue := append([]string(nil), user.Roles...)
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if r == role {
			return true
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		queue = append(queue, c.hierarchy[r]...)
	}
	return false
}

// Authorize evaluates source for user and object. An empty expression
// grants access. message replaces the default denial message.
func (c *Checker) Authorize(source, message string, user *User, object, previous metadata.Item) error {
	if source == "" {
		return nil
	}
	expr, err := c.compile(source)
	if err != nil {
		return err
	}
	granted, err := expr.Evaluate(Env{
		User:           user,
		Object:         object,
		PreviousObject: previous,
		Granted:        func(role string) bool { return c.HasRole(user, role) },
	})
	if err != nil {
		return err
	}
	if granted {
		return nil
	}

	denied := &AccessDeniedError{Message: message, Authenticated: user != nil}
	if denied.Message == "" {
		denied.Message = MessageAccessDenied
		if user == nil {
			denied.Message = MessageAuthenticationRequired
		}
	}
	return denied
}

func (c *Checker) compile(source string) (*Expression, error) {
	c.mu.RLock()
	expr, ok := c.exprs[source]
	c.mu.RUnlock()
	if ok {
		return expr, nil
	}
	expr, err := Compile(source)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.exprs[source] = expr
	c.mu.Unlock()
	return expr, nil
}
