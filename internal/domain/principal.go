package domain

import "strings"

type PrincipalType string

const (
	PrincipalCustomer PrincipalType = "customer"
	PrincipalEmployee PrincipalType = "employee"
)

const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleCashier  = "Cashier"
	RoleCustomer = "Customer"
)

// Principal is the authenticated caller, parsed once at the HTTP boundary.
type Principal struct {
	ID          int64         `json:"id"`
	Type        PrincipalType `json:"type"`
	Role        string        `json:"role"`
	AccessLevel string        `json:"access_level"`
}

func (p Principal) IsCustomer() bool {
	return p.Type == PrincipalCustomer
}

func (p Principal) IsStaff() bool {
	if p.Type != PrincipalEmployee {
		return false
	}
	switch p.Role {
	case RoleAdmin, RoleManager, RoleCashier:
		return true
	default:
		return false
	}
}

func (p Principal) IsAdmin() bool {
	return p.Type == PrincipalEmployee && p.Role == RoleAdmin
}

// CanManageCatalog is true for Admin and Manager employees.
func (p Principal) CanManageCatalog() bool {
	return p.Type == PrincipalEmployee && (p.Role == RoleAdmin || p.Role == RoleManager)
}

// CanAccessCustomer reports whether the principal may act on data owned by customerID.
func (p Principal) CanAccessCustomer(customerID int64) bool {
	if p.IsStaff() {
		return true
	}
	return p.IsCustomer() && p.ID == customerID
}

// NormalizeRole maps free-form role input onto one of the employee roles.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "cashier":
		return RoleCashier, true
	case "manager":
		return RoleManager, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

func AccessLevelFor(principalType PrincipalType, role string) string {
	if principalType == PrincipalCustomer {
		return "customer"
	}
	switch role {
	case RoleAdmin:
		return "full"
	case RoleManager:
		return "manage"
	default:
		return "operate"
	}
}

// NormalizePaymentMode returns the canonical spelling of a supported payment mode.
func NormalizePaymentMode(mode string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "cash":
		return PaymentCash, true
	case "card":
		return PaymentCard, true
	case "upi":
		return PaymentUPI, true
	default:
		return "", false
	}
}
