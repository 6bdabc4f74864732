package services

import (
	"github.com/casbin/casbin/v2"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// EnforcerWrapper adapts the concrete Casbin enforcer to the narrow
// domain.PolicyEnforcer surface the rest of the code depends on.
type EnforcerWrapper struct {
	enforcer *casbin.Enforcer
}

// NewEnforcerWrapper wraps a Casbin enforcer
func NewEnforcerWrapper(enforcer *casbin.Enforcer) domain.PolicyEnforcer {
	return &EnforcerWrapper{enforcer: enforcer}
}

func (w *EnforcerWrapper) AddPolicy(params ...interface{}) (bool, error) {
	return w.enforcer.AddPolicy(params...)
}

func (w *EnforcerWrapper) RemovePolicy(params ...interface{}) (bool, error) {
	return w.enforcer.RemovePolicy(params...)
}

func (w *EnforcerWrapper) Enforce(rvals ...interface{}) (bool, error) {
	return w.enforcer.Enforce(rvals...)
}

func (w *EnforcerWrapper) GetPolicy() ([][]string, error) {
	return w.enforcer.GetPolicy()
}

func (w *EnforcerWrapper) SavePolicy() error {
	return w.enforcer.SavePolicy()
}

// PolicyServiceImpl implements domain.PolicyService over Casbin. Policies
// map staff roles to route patterns; patient sessions never pass through
// here since their authority is fixed by session ownership checks.
type PolicyServiceImpl struct {
	enforcer domain.PolicyEnforcer
}

// NewPolicyService creates a new policy service
func NewPolicyService(enforcer *casbin.Enforcer) domain.PolicyService {
	return &PolicyServiceImpl{enforcer: NewEnforcerWrapper(enforcer)}
}

// NewPolicyServiceWithEnforcer creates a policy service with an injected
// enforcer (for testing)
func NewPolicyServiceWithEnforcer(enforcer domain.PolicyEnforcer) domain.PolicyService {
	return &PolicyServiceImpl{enforcer: enforcer}
}

// AddPolicy implements domain.PolicyService
func (p *PolicyServiceImpl) AddPolicy(role, resource, action string) error {
	_, err := p.enforcer.AddPolicy(role, resource, action)
	if err != nil {
		return err
	}
	return p.enforcer.SavePolicy()
}

// RemovePolicy implements domain.PolicyService
func (p *PolicyServiceImpl) RemovePolicy(role, resource, action string) error {
	_, err := p.enforcer.RemovePolicy(role, resource, action)
	if err != nil {
		return err
	}
	return p.enforcer.SavePolicy()
}

// CheckPermission implements domain.PolicyService
func (p *PolicyServiceImpl) CheckPermission(role, resource, action string) (bool, error) {
	return p.enforcer.Enforce(role, resource, action)
}

// GetPolicies implements domain.PolicyService
func (p *PolicyServiceImpl) GetPolicies() [][]string {
	policies, err := p.enforcer.GetPolicy()
	if err != nil {
		return [][]string{}
	}
	return policies
}
