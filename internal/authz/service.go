package authz

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/punchcard-next/internal/constants"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	casbinTableName = "casbin_rule"
	userSubjectFmt  = "user:%d"
	domainPrefix    = "business:"
	rolePrefix      = "role:"
	anyDomain       = "*"
)

// ErrUnavailable 授权服务未初始化
var ErrUnavailable = errors.New("authz service unavailable")

// 角色策略对所有商家生效，用户与角色的绑定按商家域隔离
const businessRBACModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.dom) && keyMatch(r.dom, p.dom) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Membership 用户在某个商家下的角色
type Membership struct {
	BusinessID uint   `json:"business_id"`
	Role       string `json:"role"`
}

// Service Casbin 授权服务
// 回答“该身份能否代表商家核销 / 管理商家”
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务并写入角色策略
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(businessRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch", util.KeyMatchFunc)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}

	svc := &Service{enforcer: enforcer}
	if err := svc.BootstrapRoles(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) ready() bool {
	return s != nil && s.enforcer != nil
}

// Allowed 判定用户在商家域内对资源的动作
func (s *Service) Allowed(userID, businessID uint, object, action string) (bool, error) {
	if !s.ready() {
		return false, ErrUnavailable
	}
	if userID == 0 || businessID == 0 {
		return false, nil
	}
	return s.enforcer.Enforce(subject(userID), domain(businessID), strings.TrimSpace(object), normalizeAction(action))
}

// CanRedeem 用户能否代表商家核销打卡码
func (s *Service) CanRedeem(userID, businessID uint) (bool, error) {
	return s.Allowed(userID, businessID, objectPunches, constants.BusinessActionRedeem)
}

// CanManage 用户能否管理商家（授予店员等）
func (s *Service) CanManage(userID, businessID uint) (bool, error) {
	return s.Allowed(userID, businessID, objectStaff, constants.BusinessActionManage)
}

// AssignBusinessRole 为用户授予商家角色（owner / staff），重复授予无副作用
func (s *Service) AssignBusinessRole(userID, businessID uint, role string) error {
	sub, dom, r, err := s.grouping(userID, businessID, role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", sub, r, dom); err != nil {
		return fmt.Errorf("assign business role failed: %w", err)
	}
	return nil
}

// RevokeBusinessRole 撤销用户的商家角色
func (s *Service) RevokeBusinessRole(userID, businessID uint, role string) error {
	sub, dom, r, err := s.grouping(userID, businessID, role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveNamedGroupingPolicy("g", sub, r, dom); err != nil {
		return fmt.Errorf("revoke business role failed: %w", err)
	}
	return nil
}

func (s *Service) grouping(userID, businessID uint, role string) (string, string, string, error) {
	if !s.ready() {
		return "", "", "", ErrUnavailable
	}
	if userID == 0 {
		return "", "", "", fmt.Errorf("user id is required")
	}
	if businessID == 0 {
		return "", "", "", fmt.Errorf("business id is required")
	}
	r, err := roleName(role)
	if err != nil {
		return "", "", "", err
	}
	return subject(userID), domain(businessID), r, nil
}

// Memberships 用户持有的全部商家角色，按商家 ID 排序
func (s *Service) Memberships(userID uint) ([]Membership, error) {
	if !s.ready() {
		return nil, ErrUnavailable
	}
	if userID == 0 {
		return nil, fmt.Errorf("user id is required")
	}
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0, subject(userID))
	if err != nil {
		return nil, fmt.Errorf("get user roles failed: %w", err)
	}
	result := make([]Membership, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		businessID, ok := parseDomain(rule[2])
		if !ok {
			continue
		}
		result = append(result, Membership{
			BusinessID: businessID,
			Role:       strings.TrimPrefix(rule[1], rolePrefix),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BusinessID == result[j].BusinessID {
			return result[i].Role < result[j].Role
		}
		return result[i].BusinessID < result[j].BusinessID
	})
	return result, nil
}

func subject(userID uint) string {
	return fmt.Sprintf(userSubjectFmt, userID)
}

func domain(businessID uint) string {
	return domainPrefix + strconv.FormatUint(uint64(businessID), 10)
}

func parseDomain(value string) (uint, bool) {
	raw, ok := strings.CutPrefix(value, domainPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// roleName 仅接受已定义的商家角色
func roleName(role string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(role))
	for _, seed := range roleSeeds {
		if seed.Role == normalized {
			return rolePrefix + normalized, nil
		}
	}
	return "", fmt.Errorf("unknown business role %q", role)
}

func normalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
