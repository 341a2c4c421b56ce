package authz

import (
	"fmt"

	"github.com/punchcard-next/internal/constants"
)

// 商家域内的资源
const (
	objectProfile = "profile"
	objectPunches = "punches"
	objectStaff   = "staff"
)

// Policy 角色在商家域内的一条授权
type Policy struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

// RoleSeed 商家角色定义
type RoleSeed struct {
	Role     string
	Policies []Policy
}

// 店主拥有店员的全部权限，额外可管理店员
var roleSeeds = []RoleSeed{
	{
		Role: constants.BusinessRoleStaff,
		Policies: []Policy{
			{Object: objectProfile, Action: "GET"},
			{Object: objectPunches, Action: constants.BusinessActionRedeem},
		},
	},
	{
		Role: constants.BusinessRoleOwner,
		Policies: []Policy{
			{Object: objectProfile, Action: "*"},
			{Object: objectPunches, Action: constants.BusinessActionRedeem},
			{Object: objectStaff, Action: constants.BusinessActionManage},
		},
	},
}

// BootstrapRoles 写入角色策略（幂等）
func (s *Service) BootstrapRoles() error {
	if !s.ready() {
		return ErrUnavailable
	}
	for _, seed := range roleSeeds {
		role := rolePrefix + seed.Role
		for _, policy := range seed.Policies {
			action := normalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("policy action is required for role %s", seed.Role)
			}
			if _, err := s.enforcer.AddPolicy(role, anyDomain, policy.Object, action); err != nil {
				return fmt.Errorf("add role policy failed: %w", err)
			}
		}
	}
	return nil
}

// RolePolicies 查询角色的授权列表
func (s *Service) RolePolicies(role string) ([]Policy, error) {
	if !s.ready() {
		return nil, ErrUnavailable
	}
	name, err := roleName(role)
	if err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, name)
	if err != nil {
		return nil, fmt.Errorf("get role policies failed: %w", err)
	}
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 4 {
			continue
		}
		policies = append(policies, Policy{Object: rule[2], Action: rule[3]})
	}
	return policies, nil
}
